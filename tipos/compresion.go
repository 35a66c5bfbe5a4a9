package tipos

import "fmt"

// Algoritmos de compresión de marcos
//
// El sistema comprime en dos niveles:
// - Nivel 1: codificación RLE de cada fila del marco (ver compresor/compresion_rle.go)
// - Nivel 2 (TipoCompresionBloque): compresión genérica de bytes sobre la forma RLE serializada
//
// El formato de serialización entre ambos niveles se elige con FormatoSerializacion.

// TipoCompresionBloque - Algoritmos de compresión de nivel 2 (bloques completos)
type TipoCompresionBloque string

// Valores posibles para TipoCompresionBloque
const (
	Ninguna TipoCompresionBloque = "Ninguna" // Sin compresión
	LZ4     TipoCompresionBloque = "LZ4"     // LZ4 - rápido, compresión moderada
	ZSTD    TipoCompresionBloque = "ZSTD"    // Zstandard - mejor compresión, más lento
	Snappy  TipoCompresionBloque = "Snappy"  // Snappy - muy rápido, compresión baja
	Gzip    TipoCompresionBloque = "Gzip"    // Gzip - compatible, compresión moderada
)

// códigos de un byte que identifican el algoritmo dentro de un blob comprimido.
// Son constantes de protocolo: cambiarlos rompe la compatibilidad con blobs existentes.
var codigosCompresionBloque = map[TipoCompresionBloque]byte{
	Ninguna: 0,
	LZ4:     1,
	ZSTD:    2,
	Snappy:  3,
	Gzip:    4,
}

// TiposCompresionBloque retorna todos los algoritmos de nivel 2 soportados
func TiposCompresionBloque() []TipoCompresionBloque {
	return []TipoCompresionBloque{Ninguna, LZ4, ZSTD, Snappy, Gzip}
}

// Codigo retorna el byte que identifica al algoritmo en el formato de transporte
func (t TipoCompresionBloque) Codigo() (byte, error) {
	codigo, existe := codigosCompresionBloque[t]
	if !existe {
		return 0, fmt.Errorf("algoritmo de compresión de bloque desconocido: %q", string(t))
	}
	return codigo, nil
}

// Validar verifica que el algoritmo sea uno de los soportados
func (t TipoCompresionBloque) Validar() error {
	_, err := t.Codigo()
	return err
}

// CompresionBloqueDesdeCodigo es la operación inversa de Codigo
func CompresionBloqueDesdeCodigo(codigo byte) (TipoCompresionBloque, error) {
	for tipo, c := range codigosCompresionBloque {
		if c == codigo {
			return tipo, nil
		}
	}
	return "", fmt.Errorf("código de compresión de bloque desconocido: %d", codigo)
}

// FormatoSerializacion - codificación estructurada de un MarcoComprimido
type FormatoSerializacion string

// Valores posibles para FormatoSerializacion
const (
	FormatoCBOR FormatoSerializacion = "CBOR" // CBOR determinístico (RFC 8949 §4.2), compacto
	FormatoJSON FormatoSerializacion = "JSON" // JSON, legible
	FormatoGob  FormatoSerializacion = "Gob"  // encoding/gob
)

var codigosFormato = map[FormatoSerializacion]byte{
	FormatoCBOR: 1,
	FormatoJSON: 2,
	FormatoGob:  3,
}

// FormatosSerializacion retorna todos los formatos soportados
func FormatosSerializacion() []FormatoSerializacion {
	return []FormatoSerializacion{FormatoCBOR, FormatoJSON, FormatoGob}
}

// Codigo retorna el byte que identifica al formato en el encabezado serializado
func (f FormatoSerializacion) Codigo() (byte, error) {
	codigo, existe := codigosFormato[f]
	if !existe {
		return 0, fmt.Errorf("formato de serialización desconocido: %q", string(f))
	}
	return codigo, nil
}

// Validar verifica que el formato sea uno de los soportados
func (f FormatoSerializacion) Validar() error {
	_, err := f.Codigo()
	return err
}

// FormatoDesdeCodigo es la operación inversa de FormatoSerializacion.Codigo
func FormatoDesdeCodigo(codigo byte) (FormatoSerializacion, error) {
	for formato, c := range codigosFormato {
		if c == codigo {
			return formato, nil
		}
	}
	return "", fmt.Errorf("código de formato desconocido: %d", codigo)
}
