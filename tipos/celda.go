package tipos

// ============================================================================
// MODELO DE GRILLA
// ============================================================================

// RGB representa un color explícito de tres canales de 8 bits
type RGB struct {
	R uint8 `json:"r" cbor:"r"`
	G uint8 `json:"g" cbor:"g"`
	B uint8 `json:"b" cbor:"b"`
}

// Celda es la unidad atómica de un marco: un carácter con color opcional.
// Color == nil representa "sin color" (modo monocromo).
type Celda struct {
	Caracter rune `json:"caracter" cbor:"caracter"`
	Color    *RGB `json:"color" cbor:"color"`
}

// NuevaCelda crea una celda sin color
func NuevaCelda(caracter rune) Celda {
	return Celda{Caracter: caracter}
}

// NuevaCeldaColor crea una celda con un color explícito
func NuevaCeldaColor(caracter rune, color RGB) Celda {
	return Celda{Caracter: caracter, Color: &color}
}

// TieneColor indica si la celda lleva un color explícito
func (c Celda) TieneColor() bool {
	return c.Color != nil
}

// Igual compara carácter y color, incluyendo la distinción con/sin color.
// Dos celdas con el mismo carácter pero distinto estado de color no son iguales.
func (c Celda) Igual(otra Celda) bool {
	if c.Caracter != otra.Caracter {
		return false
	}
	if c.Color == nil || otra.Color == nil {
		return c.Color == nil && otra.Color == nil
	}
	return *c.Color == *otra.Color
}

// Copiar retorna una celda que no comparte el color con la original
func (c Celda) Copiar() Celda {
	if c.Color == nil {
		return c
	}
	color := *c.Color
	return Celda{Caracter: c.Caracter, Color: &color}
}

// Marco es la grilla sin comprimir: filas ordenadas de celdas ordenadas.
// En un marco bien formado todas las filas comparten el mismo ancho.
type Marco [][]Celda

// Alto retorna la cantidad de filas
func (m Marco) Alto() int {
	return len(m)
}

// Ancho retorna el largo de la primera fila (0 para un marco vacío)
func (m Marco) Ancho() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// CantidadCeldas retorna el total de celdas de todas las filas
func (m Marco) CantidadCeldas() int {
	total := 0
	for _, fila := range m {
		total += len(fila)
	}
	return total
}

// TieneColor indica si alguna celda del marco lleva color
func (m Marco) TieneColor() bool {
	for _, fila := range m {
		for _, celda := range fila {
			if celda.TieneColor() {
				return true
			}
		}
	}
	return false
}

// Igual compara dos marcos celda por celda. Un marco nil y uno vacío son iguales.
func (m Marco) Igual(otro Marco) bool {
	if len(m) != len(otro) {
		return false
	}
	for i := range m {
		if len(m[i]) != len(otro[i]) {
			return false
		}
		for j := range m[i] {
			if !m[i][j].Igual(otro[i][j]) {
				return false
			}
		}
	}
	return true
}

// Corrida es un par (cantidad, celda): cantidad celdas iguales consecutivas en una fila.
// Cantidad == 0 nunca es válido y marca datos corruptos.
type Corrida struct {
	Cantidad uint32 `json:"cantidad" cbor:"cantidad"`
	Celda    Celda  `json:"celda" cbor:"celda"`
}

// MarcoComprimido es la forma RLE de un marco.
//
// Invariantes:
//   - len(Filas) == Alto
//   - la suma de Cantidad de cada fila es Ancho
//   - toda corrida tiene Cantidad >= 1
//   - TieneColor es true si y solo si alguna celda del marco original tenía color
//
// TieneColor es un campo derivado: lo calcula el codificador RLE.
type MarcoComprimido struct {
	Ancho      uint32      `json:"ancho" cbor:"ancho"`
	Alto       uint32      `json:"alto" cbor:"alto"`
	TieneColor bool        `json:"tiene_color" cbor:"tiene_color"`
	Filas      [][]Corrida `json:"filas" cbor:"filas"`
}

// CantidadCorridas retorna el total de corridas de todas las filas
func (mc MarcoComprimido) CantidadCorridas() int {
	total := 0
	for _, fila := range mc.Filas {
		total += len(fila)
	}
	return total
}

// Igual compara dos marcos comprimidos campo por campo.
// Filas nil y filas vacías se consideran iguales (gob no transmite slices vacíos).
func (mc MarcoComprimido) Igual(otro MarcoComprimido) bool {
	if mc.Ancho != otro.Ancho || mc.Alto != otro.Alto || mc.TieneColor != otro.TieneColor {
		return false
	}
	if len(mc.Filas) != len(otro.Filas) {
		return false
	}
	for i := range mc.Filas {
		if len(mc.Filas[i]) != len(otro.Filas[i]) {
			return false
		}
		for j := range mc.Filas[i] {
			a, b := mc.Filas[i][j], otro.Filas[i][j]
			if a.Cantidad != b.Cantidad || !a.Celda.Igual(b.Celda) {
				return false
			}
		}
	}
	return true
}
