package tipos

import "fmt"

// ============================================================================
// ERRORES DEL NÚCLEO DE COMPRESIÓN
// ============================================================================
//
// Todos los errores son fatales para la llamada en curso. Llevan la estructura
// necesaria (tipo + índice o tamaño) para que quien llama los registre; el
// núcleo no formatea mensajes para el usuario final.

// ErrorCorridaVacia indica una corrida declarada con cantidad 0
type ErrorCorridaVacia struct {
	Fila    int // índice de la fila
	Corrida int // índice de la corrida dentro de la fila
}

func (e *ErrorCorridaVacia) Error() string {
	return fmt.Sprintf("corrida %d de la fila %d tiene cantidad 0", e.Corrida, e.Fila)
}

// ErrorLongitudFila indica que una fila expandida no mide Ancho celdas
type ErrorLongitudFila struct {
	Fila     int
	Obtenido uint64
	Esperado uint64
}

func (e *ErrorLongitudFila) Error() string {
	return fmt.Sprintf("la fila %d tiene longitud %d pero se esperaba %d", e.Fila, e.Obtenido, e.Esperado)
}

// ErrorCantidadFilas indica que la cantidad de filas no coincide con Alto
type ErrorCantidadFilas struct {
	Obtenido int
	Esperado int
}

func (e *ErrorCantidadFilas) Error() string {
	return fmt.Sprintf("el marco tiene %d filas pero se esperaban %d", e.Obtenido, e.Esperado)
}

// ErrorDeserializacion indica que los bytes no forman un MarcoComprimido válido
type ErrorDeserializacion struct {
	Motivo string
	Err    error
}

func (e *ErrorDeserializacion) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("error de deserialización: %s: %v", e.Motivo, e.Err)
	}
	return "error de deserialización: " + e.Motivo
}

func (e *ErrorDeserializacion) Unwrap() error {
	return e.Err
}

// ErrorCompresion indica una falla interna del compresor de bytes
type ErrorCompresion struct {
	Algoritmo TipoCompresionBloque
	Err       error
}

func (e *ErrorCompresion) Error() string {
	return fmt.Sprintf("error al comprimir con %s: %v", e.Algoritmo, e.Err)
}

func (e *ErrorCompresion) Unwrap() error {
	return e.Err
}

// ErrorDescompresion indica un flujo comprimido malformado, truncado o de otro algoritmo
type ErrorDescompresion struct {
	Algoritmo TipoCompresionBloque
	Err       error
}

func (e *ErrorDescompresion) Error() string {
	return fmt.Sprintf("error al descomprimir con %s: %v", e.Algoritmo, e.Err)
}

func (e *ErrorDescompresion) Unwrap() error {
	return e.Err
}
