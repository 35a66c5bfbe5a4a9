package compresor

import (
	"fmt"

	"github.com/cbiale/asciiwave/tipos"
	"github.com/klauspost/compress/zstd"
)

// encoder y decoder compartidos: zstd.Encoder.EncodeAll y zstd.Decoder.DecodeAll
// son seguros para uso concurrente.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compresor: error al crear encoder Zstd: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compresor: error al crear decoder Zstd: " + err.Error())
	}
}

// CompresorZSTD implementa compresión Zstd
type CompresorZSTD struct {
	Limite int // máximo descomprimido en bytes; 0 = LimitePorDefecto
}

// Comprimir comprime los datos usando el algoritmo Zstd.
func (c *CompresorZSTD) Comprimir(datos []byte) ([]byte, error) {
	if len(datos) == 0 {
		return []byte{}, nil
	}

	return zstdEncoder.EncodeAll(datos, make([]byte, 0, len(datos)/2)), nil
}

// Descomprimir descomprime los datos usando el algoritmo Zstd.
func (c *CompresorZSTD) Descomprimir(datos []byte) ([]byte, error) {
	if len(datos) == 0 {
		return []byte{}, nil
	}

	limite := limiteEfectivo(c.Limite)

	// EncodeAll escribe el tamaño del contenido en el encabezado del frame
	var encabezado zstd.Header
	if err := encabezado.Decode(datos); err == nil && encabezado.HasFCS && encabezado.FrameContentSize > uint64(limite) {
		return nil, &tipos.ErrorDescompresion{
			Algoritmo: tipos.ZSTD,
			Err:       fmt.Errorf("%w: el frame declara %d bytes (%d permitidos)", ErrLimiteExcedido, encabezado.FrameContentSize, limite),
		}
	}

	descomprimido, err := zstdDecoder.DecodeAll(datos, nil)
	if err != nil {
		return nil, &tipos.ErrorDescompresion{Algoritmo: tipos.ZSTD, Err: err}
	}
	if len(descomprimido) > limite {
		return nil, &tipos.ErrorDescompresion{Algoritmo: tipos.ZSTD, Err: fmt.Errorf("%w (%d bytes)", ErrLimiteExcedido, limite)}
	}

	// DecodeAll retorna nil para un frame válido sin contenido
	if descomprimido == nil {
		descomprimido = []byte{}
	}
	return descomprimido, nil
}
