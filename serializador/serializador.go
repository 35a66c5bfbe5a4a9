package serializador

/*
## Formato de un MarcoComprimido serializado

	+------+------+---------+---------+----------------------+
	| 'A'  | 'W'  | versión | formato | carga útil ...       |
	+------+------+---------+---------+----------------------+
	  1 B    1 B     1 B       1 B

- versión: VersionActual (1). Un cambio en la disposición de la carga útil
  obliga a incrementarla.
- formato: código de tipos.FormatoSerializacion (CBOR=1, JSON=2, Gob=3).
- carga útil: el MarcoComprimido completo (ancho, alto, tiene_color, filas).

Los tres formatos son determinísticos: el mismo MarcoComprimido produce
siempre los mismos bytes. Cualquier dato que no sea exactamente un valor
bien formado (encabezado corto, carga truncada, tipos incorrectos, bytes
sobrantes) produce *tipos.ErrorDeserializacion.
*/

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cbiale/asciiwave/tipos"
	"github.com/fxamacker/cbor/v2"
)

const (
	magico0 byte = 'A'
	magico1 byte = 'W'

	// VersionActual es la versión del formato que escribe Serializar
	VersionActual byte = 1

	// TamanoEncabezado es la cantidad de bytes previos a la carga útil
	TamanoEncabezado = 4
)

// modos CBOR compartidos, inmutables y seguros para uso concurrente
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error

	// Core Deterministic Encoding (RFC 8949 §4.2): claves ordenadas,
	// enteros en su forma más corta y sin elementos de longitud indefinida.
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("serializador: error al crear encoder CBOR: " + err.Error())
	}

	cborDec, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		MaxArrayElements:  16 * 1024 * 1024,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("serializador: error al crear decoder CBOR: " + err.Error())
	}
}

// Serializar codifica un MarcoComprimido con el encabezado versionado
func Serializar(mc tipos.MarcoComprimido, formato tipos.FormatoSerializacion) ([]byte, error) {
	codigo, err := formato.Codigo()
	if err != nil {
		return nil, err
	}

	var carga []byte
	switch formato {
	case tipos.FormatoCBOR:
		carga, err = cborEnc.Marshal(mc)
	case tipos.FormatoJSON:
		carga, err = json.Marshal(mc)
	case tipos.FormatoGob:
		carga, err = tipos.SerializarGob(mc)
	}
	if err != nil {
		return nil, fmt.Errorf("error al serializar en %s: %w", formato, err)
	}

	resultado := make([]byte, 0, TamanoEncabezado+len(carga))
	resultado = append(resultado, magico0, magico1, VersionActual, codigo)
	resultado = append(resultado, carga...)
	return resultado, nil
}

// Deserializar reconstruye un MarcoComprimido a partir de la salida de Serializar.
// No valida la consistencia entre dimensiones y corridas: eso corresponde al
// decodificador RLE.
func Deserializar(datos []byte) (tipos.MarcoComprimido, error) {
	formato, err := LeerEncabezado(datos)
	if err != nil {
		return tipos.MarcoComprimido{}, err
	}
	carga := datos[TamanoEncabezado:]

	var mc tipos.MarcoComprimido
	switch formato {
	case tipos.FormatoCBOR:
		err = cborDec.Unmarshal(carga, &mc)
	case tipos.FormatoJSON:
		err = deserializarJSON(carga, &mc)
	case tipos.FormatoGob:
		err = tipos.DeserializarGob(carga, &mc)
	}
	if err != nil {
		return tipos.MarcoComprimido{}, &tipos.ErrorDeserializacion{
			Motivo: fmt.Sprintf("carga útil %s inválida", formato),
			Err:    err,
		}
	}

	return mc, nil
}

// LeerEncabezado valida el encabezado y retorna el formato de la carga útil
func LeerEncabezado(datos []byte) (tipos.FormatoSerializacion, error) {
	if len(datos) < TamanoEncabezado {
		return "", &tipos.ErrorDeserializacion{
			Motivo: fmt.Sprintf("encabezado truncado: %d bytes, se esperaban al menos %d", len(datos), TamanoEncabezado),
		}
	}

	if datos[0] != magico0 || datos[1] != magico1 {
		return "", &tipos.ErrorDeserializacion{
			Motivo: fmt.Sprintf("número mágico inválido: %#02x %#02x", datos[0], datos[1]),
		}
	}

	if datos[2] != VersionActual {
		return "", &tipos.ErrorDeserializacion{
			Motivo: fmt.Sprintf("versión de formato no soportada: %d", datos[2]),
		}
	}

	formato, err := tipos.FormatoDesdeCodigo(datos[3])
	if err != nil {
		return "", &tipos.ErrorDeserializacion{Motivo: "formato desconocido", Err: err}
	}

	return formato, nil
}

// deserializarJSON exige un único objeto sin campos desconocidos ni datos posteriores
func deserializarJSON(carga []byte, mc *tipos.MarcoComprimido) error {
	decoder := json.NewDecoder(bytes.NewReader(carga))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(mc); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errors.New("datos sobrantes después del objeto JSON")
	}
	return nil
}
