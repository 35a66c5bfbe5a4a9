package despachador

import (
	"fmt"
	"unicode/utf8"

	"github.com/cbiale/asciiwave/tipos"
)

// ============================================================================
// TIPOS DE SOLICITUD Y RESPUESTA DE LA API REST
// Estos structs son usados por los handlers para serializar JSON
// ============================================================================

// CeldaJSON representación JSON de una celda: el carácter como texto y el color
// como [r, g, b] o null
type CeldaJSON struct {
	Caracter string    `json:"caracter"`
	Color    *[3]uint8 `json:"color,omitempty"`
}

// SolicitudComprimir cuerpo de POST /comprimir
type SolicitudComprimir struct {
	Filas [][]CeldaJSON `json:"filas"`
}

// RespuestaDescomprimir respuesta de POST /descomprimir
type RespuestaDescomprimir struct {
	Ancho int           `json:"ancho"`
	Alto  int           `json:"alto"`
	Filas [][]CeldaJSON `json:"filas"`
}

// RespuestaComprimir metadatos de una compresión (cabeceras HTTP o cuerpo CoAP)
type RespuestaComprimir struct {
	ID               string  `json:"id"`
	Clave            string  `json:"clave,omitempty"`
	TamanoOriginal   int     `json:"tamano_original"`
	TamanoComprimido int     `json:"tamano_comprimido"`
	Razon            float64 `json:"razon"`
}

// RespuestaEstado respuesta de GET /estado
type RespuestaEstado struct {
	CompresionBloque string `json:"compresion_bloque"`
	Formato          string `json:"formato"`
	MaximoCeldas     int    `json:"maximo_celdas"`
	Almacen          bool   `json:"almacen"`
	Difusores        int    `json:"difusores"`
	Observadores     int    `json:"observadores"`
}

// RespuestaError cuerpo de toda respuesta de error
type RespuestaError struct {
	Error string `json:"error"`
	Etapa string `json:"etapa,omitempty"` // etapa del pipeline, si corresponde
}

// ErrorCaracter indica una celda cuyo carácter no es exactamente un rune
type ErrorCaracter struct {
	Fila, Columna int
	Caracter      string
}

func (e *ErrorCaracter) Error() string {
	return fmt.Sprintf("celda (%d, %d): el carácter %q debe ser exactamente un símbolo", e.Fila, e.Columna, e.Caracter)
}

// ErrorFilaIrregular indica una fila cuyo largo difiere del de la primera
type ErrorFilaIrregular struct {
	Fila               int
	Obtenido, Esperado int
}

func (e *ErrorFilaIrregular) Error() string {
	return fmt.Sprintf("fila %d: tiene %d celdas, se esperaban %d", e.Fila, e.Obtenido, e.Esperado)
}

// MarcoDesdeJSON convierte las filas recibidas en un tipos.Marco.
// Todas las filas deben tener el largo de la primera.
func MarcoDesdeJSON(filas [][]CeldaJSON) (tipos.Marco, error) {
	marco := make(tipos.Marco, len(filas))
	for i, fila := range filas {
		if len(fila) != len(filas[0]) {
			return nil, &ErrorFilaIrregular{Fila: i, Obtenido: len(fila), Esperado: len(filas[0])}
		}
		marco[i] = make([]tipos.Celda, len(fila))
		for j, celda := range fila {
			// un U+FFFD literal es válido; solo se rechaza UTF-8 malformado
			caracter, tamano := utf8.DecodeRuneInString(celda.Caracter)
			if tamano == 0 || tamano != len(celda.Caracter) || (caracter == utf8.RuneError && tamano == 1) {
				return nil, &ErrorCaracter{Fila: i, Columna: j, Caracter: celda.Caracter}
			}

			marco[i][j] = tipos.NuevaCelda(caracter)
			if celda.Color != nil {
				marco[i][j] = tipos.NuevaCeldaColor(caracter, tipos.RGB{R: celda.Color[0], G: celda.Color[1], B: celda.Color[2]})
			}
		}
	}
	return marco, nil
}

// MarcoAJSON convierte un tipos.Marco en filas JSON
func MarcoAJSON(marco tipos.Marco) [][]CeldaJSON {
	filas := make([][]CeldaJSON, len(marco))
	for i, fila := range marco {
		filas[i] = make([]CeldaJSON, len(fila))
		for j, celda := range fila {
			filas[i][j] = CeldaJSON{Caracter: string(celda.Caracter)}
			if celda.Color != nil {
				filas[i][j].Color = &[3]uint8{celda.Color.R, celda.Color.G, celda.Color.B}
			}
		}
	}
	return filas
}

// NuevaRespuestaDescomprimir arma la respuesta JSON de un marco recuperado
func NuevaRespuestaDescomprimir(marco tipos.Marco) RespuestaDescomprimir {
	return RespuestaDescomprimir{
		Ancho: marco.Ancho(),
		Alto:  marco.Alto(),
		Filas: MarcoAJSON(marco),
	}
}
