package tipos

import "strings"

// MarcoDesdeTexto arma un marco sin color con una fila por línea.
// Las líneas más cortas se completan con espacios hasta el ancho de la más larga.
func MarcoDesdeTexto(texto string) Marco {
	texto = strings.TrimSuffix(strings.ReplaceAll(texto, "\r\n", "\n"), "\n")
	if texto == "" {
		return Marco{}
	}

	lineas := strings.Split(texto, "\n")
	ancho := 0
	filas := make([][]rune, len(lineas))
	for i, linea := range lineas {
		filas[i] = []rune(linea)
		ancho = max(ancho, len(filas[i]))
	}

	marco := make(Marco, len(filas))
	for i, fila := range filas {
		marco[i] = make([]Celda, ancho)
		for j := range marco[i] {
			caracter := ' '
			if j < len(fila) {
				caracter = fila[j]
			}
			marco[i][j] = NuevaCelda(caracter)
		}
	}
	return marco
}

// Texto retorna los caracteres del marco, una línea por fila, sin colores
func (m Marco) Texto() string {
	var b strings.Builder
	for i, fila := range m {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, celda := range fila {
			b.WriteRune(celda.Caracter)
		}
	}
	return b.String()
}
