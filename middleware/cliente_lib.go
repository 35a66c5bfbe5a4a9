package middleware

import (
	"fmt"

	"github.com/cbiale/asciiwave/pipeline"
	"github.com/cbiale/asciiwave/tipos"
	"github.com/fxamacker/cbor/v2"
)

// CallbackFunc recibe cada marco publicado en un tópico suscripto
type CallbackFunc func(topico string, marco tipos.Marco)

// Cliente difunde marcos comprimidos sobre un broker (MQTT, NATS)
type Cliente interface {
	Desconectar()
	Publicar(topico string, marco tipos.Marco) error
	PublicarComprimido(topico string, datos []byte) error
	Suscribir(topico string, manejador CallbackFunc) error
	Desuscribir(topico string) error
}

// Difusor es la parte de Cliente que usan los servidores para reenviar blobs ya comprimidos
type Difusor interface {
	PublicarComprimido(topico string, datos []byte) error
}

// Mensaje es el sobre que viaja por el broker.
// Original indica si el mensaje fue publicado por un productor o es una réplica;
// Interno marca mensajes de control que no llevan un marco.
type Mensaje struct {
	Original bool   `cbor:"original" json:"original"`
	Topico   string `cbor:"topico" json:"topico"`
	Payload  []byte `cbor:"payload" json:"payload"` // blob del pipeline
	Interno  bool   `cbor:"interno" json:"interno"`
}

var (
	mensajeEnc cbor.EncMode
	mensajeDec cbor.DecMode
)

func init() {
	var err error
	mensajeEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("middleware: error al crear encoder CBOR: " + err.Error())
	}
	mensajeDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("middleware: error al crear decoder CBOR: " + err.Error())
	}
}

// CodificarMensaje serializa el sobre en CBOR determinístico
func CodificarMensaje(mensaje Mensaje) ([]byte, error) {
	return mensajeEnc.Marshal(mensaje)
}

// DecodificarMensaje es la operación inversa de CodificarMensaje
func DecodificarMensaje(datos []byte) (Mensaje, error) {
	var mensaje Mensaje
	if err := mensajeDec.Unmarshal(datos, &mensaje); err != nil {
		return Mensaje{}, fmt.Errorf("mensaje inválido: %w", err)
	}
	return mensaje, nil
}

// EmpaquetarComprimido arma el sobre de un blob ya comprimido
func EmpaquetarComprimido(topico string, blob []byte) ([]byte, error) {
	return CodificarMensaje(Mensaje{Original: true, Topico: topico, Payload: blob})
}

// Empaquetar comprime el marco con el pipeline y arma el sobre
func Empaquetar(p *pipeline.Pipeline, topico string, marco tipos.Marco) ([]byte, error) {
	blob, err := p.Comprimir(marco)
	if err != nil {
		return nil, err
	}
	return EmpaquetarComprimido(topico, blob)
}

// Desempaquetar abre el sobre y descomprime el marco.
// Los mensajes internos se retornan sin marco.
func Desempaquetar(p *pipeline.Pipeline, datos []byte) (Mensaje, tipos.Marco, error) {
	mensaje, err := DecodificarMensaje(datos)
	if err != nil {
		return Mensaje{}, nil, err
	}
	if mensaje.Interno {
		return mensaje, nil, nil
	}

	marco, err := p.Descomprimir(mensaje.Payload)
	if err != nil {
		return mensaje, nil, fmt.Errorf("marco del tópico %s: %w", mensaje.Topico, err)
	}
	return mensaje, marco, nil
}
