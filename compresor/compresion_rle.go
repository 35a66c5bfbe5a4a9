/*
## Algoritmo de Compresión RLE (Run-Length Encoding) - Marcos ASCII

Objetivo: Comprimir un marco de celdas (carácter + color opcional) detectando repeticiones
horizontales consecutivas dentro de cada fila.

Entrada: Marco [fila₀, fila₁, ..., filaₕ₋₁], cada fila [c₀, c₁, ..., cₙ]

Salida: MarcoComprimido con:

• ancho: largo de la primera fila
• alto: cantidad de filas
• tiene_color: true si alguna celda de cualquier fila tiene color
• filas: por cada fila, secuencia de corridas (cantidad, celda)

Algoritmo (por fila):

1. Inicializar:
 • Si la fila está vacía, su lista de corridas queda vacía
 • celda_actual ← primera celda
 • cantidad ← 1

2. Procesar cada celda cᵢ restante:
 • Si cᵢ es igual a celda_actual (mismo carácter Y mismo color, incluyendo sin color):
  • cantidad ← cantidad + 1
 • Sino:
  • Agregar corrida (cantidad, celda_actual)
  • celda_actual ← cᵢ
  • cantidad ← 1

3. Finalizar:
 • Agregar la última corrida (cantidad, celda_actual)

Decodificación:

• ancho == 0 o alto == 0: retorna un marco vacío sin validar
• Por fila: toda corrida con cantidad 0 es un error; la suma de cantidades debe ser ancho
• Al final: la cantidad de filas debe ser alto

Restricciones:

• Dos celdas con el mismo carácter y distinto color NO se fusionan: hacerlo perdería color
• Cantidades uint32; una fila nunca supera 2³²-1 celdas

Complejidad: O(n) tiempo sobre el total de celdas, O(k) espacio donde k ≤ n es el número de corridas.
*/

package compresor

import (
	"github.com/cbiale/asciiwave/tipos"
)

// CompresorRLE implementa la codificación RLE de marcos ASCII
type CompresorRLE struct{}

// Codificar comprime un marco en su forma RLE. Nunca falla: filas irregulares o
// vacías producen un MarcoComprimido que Decodificar rechazará si es inconsistente.
func (c *CompresorRLE) Codificar(marco tipos.Marco) tipos.MarcoComprimido {
	if len(marco) == 0 {
		return tipos.MarcoComprimido{}
	}

	comprimido := tipos.MarcoComprimido{
		Ancho:      uint32(marco.Ancho()),
		Alto:       uint32(marco.Alto()),
		TieneColor: marco.TieneColor(),
		Filas:      make([][]tipos.Corrida, 0, len(marco)),
	}

	for _, fila := range marco {
		comprimido.Filas = append(comprimido.Filas, codificarFila(fila))
	}

	return comprimido
}

// codificarFila comprime una fila en corridas
func codificarFila(fila []tipos.Celda) []tipos.Corrida {
	corridas := []tipos.Corrida{}
	if len(fila) == 0 {
		return corridas
	}

	celdaActual := fila[0]
	cantidad := uint32(1)

	for _, celda := range fila[1:] {
		if celda.Igual(celdaActual) {
			cantidad++
			continue
		}
		corridas = append(corridas, tipos.Corrida{Cantidad: cantidad, Celda: celdaActual.Copiar()})
		celdaActual = celda
		cantidad = 1
	}

	return append(corridas, tipos.Corrida{Cantidad: cantidad, Celda: celdaActual.Copiar()})
}

// Decodificar expande un MarcoComprimido al marco original validando sus invariantes.
//
// Errores:
//   - *tipos.ErrorCorridaVacia si alguna corrida tiene cantidad 0
//   - *tipos.ErrorLongitudFila si una fila no suma Ancho celdas
//   - *tipos.ErrorCantidadFilas si la cantidad de filas no es Alto
func (c *CompresorRLE) Decodificar(comprimido tipos.MarcoComprimido) (tipos.Marco, error) {
	if comprimido.Ancho == 0 || comprimido.Alto == 0 {
		return tipos.Marco{}, nil
	}

	marco := make(tipos.Marco, 0, min(len(comprimido.Filas), int(comprimido.Alto)))

	for indice, corridas := range comprimido.Filas {
		fila, err := decodificarFila(indice, corridas, comprimido.Ancho)
		if err != nil {
			return nil, err
		}
		marco = append(marco, fila)
	}

	if len(comprimido.Filas) != int(comprimido.Alto) {
		return nil, &tipos.ErrorCantidadFilas{
			Obtenido: len(comprimido.Filas),
			Esperado: int(comprimido.Alto),
		}
	}

	return marco, nil
}

// decodificarFila expande una fila. La longitud se calcula a partir de las cantidades
// antes de reservar memoria, así una cantidad hostil no puede agotar la memoria.
func decodificarFila(indice int, corridas []tipos.Corrida, ancho uint32) ([]tipos.Celda, error) {
	var longitud uint64
	for j, corrida := range corridas {
		if corrida.Cantidad == 0 {
			return nil, &tipos.ErrorCorridaVacia{Fila: indice, Corrida: j}
		}
		longitud += uint64(corrida.Cantidad)
	}

	if longitud != uint64(ancho) {
		return nil, &tipos.ErrorLongitudFila{
			Fila:     indice,
			Obtenido: longitud,
			Esperado: uint64(ancho),
		}
	}

	fila := make([]tipos.Celda, 0, ancho)
	for _, corrida := range corridas {
		for i := uint32(0); i < corrida.Cantidad; i++ {
			fila = append(fila, corrida.Celda.Copiar())
		}
	}

	return fila, nil
}
