package servidor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/cbiale/asciiwave/almacen"
	"github.com/cbiale/asciiwave/despachador"
	"github.com/cbiale/asciiwave/middleware"
	"github.com/cbiale/asciiwave/pipeline"
	"github.com/cbiale/asciiwave/registro"
)

// MaximoCuerpoPorDefecto limita el tamaño de los cuerpos de las solicitudes
const MaximoCuerpoPorDefecto = 8 << 20

// TopicoPorDefecto es el tópico donde se difunden los marcos comprimidos
const TopicoPorDefecto = "/asciiwave/marcos"

// Opciones de construcción del servidor
type Opciones struct {
	Pipeline     *pipeline.Pipeline   // requerido
	Almacen      almacen.Almacen      // opcional: guarda cada blob comprimido
	Difusores    []middleware.Difusor // opcional: reenvían cada blob comprimido
	Topico       string               // tópico de difusión
	MaximoCuerpo int64                // bytes; 0 = MaximoCuerpoPorDefecto
	Logger       *zap.Logger          // nil = registro.Logger()
}

// Servidor expone el pipeline por HTTP y CoAP
type Servidor struct {
	pipeline     *pipeline.Pipeline
	almacen      almacen.Almacen
	difusores    []middleware.Difusor
	topico       string
	maximoCuerpo int64
	logger       *zap.Logger
	observadores *observadoresCoAP
}

// NuevoServidor crea un servidor con las opciones dadas
func NuevoServidor(opciones Opciones) (*Servidor, error) {
	if opciones.Pipeline == nil {
		return nil, errors.New("el servidor requiere un pipeline")
	}
	if opciones.Topico == "" {
		opciones.Topico = TopicoPorDefecto
	}
	if opciones.MaximoCuerpo <= 0 {
		opciones.MaximoCuerpo = MaximoCuerpoPorDefecto
	}
	if opciones.Logger == nil {
		opciones.Logger = registro.Logger()
	}

	return &Servidor{
		pipeline:     opciones.Pipeline,
		almacen:      opciones.Almacen,
		difusores:    opciones.Difusores,
		topico:       opciones.Topico,
		maximoCuerpo: opciones.MaximoCuerpo,
		logger:       opciones.Logger,
		observadores: nuevosObservadoresCoAP(),
	}, nil
}

// errores del lado del cliente, respondidos con 400
type errorCliente struct {
	err error
}

func (e *errorCliente) Error() string { return e.err.Error() }
func (e *errorCliente) Unwrap() error { return e.err }

// errCuerpoGrande indica un cuerpo mayor que maximoCuerpo
var errCuerpoGrande = errors.New("el cuerpo de la solicitud es demasiado grande")

// comprimir decodifica el marco JSON, lo comprime, lo guarda y lo difunde
func (s *Servidor) comprimir(ctx context.Context, sol *registro.Solicitud, cuerpo []byte) ([]byte, despachador.RespuestaComprimir, error) {
	var solicitud despachador.SolicitudComprimir
	if err := json.Unmarshal(cuerpo, &solicitud); err != nil {
		return nil, despachador.RespuestaComprimir{}, &errorCliente{fmt.Errorf("JSON inválido: %w", err)}
	}

	marco, err := despachador.MarcoDesdeJSON(solicitud.Filas)
	if err != nil {
		return nil, despachador.RespuestaComprimir{}, &errorCliente{err}
	}

	blob, estadisticas, err := s.pipeline.ComprimirConEstadisticas(marco)
	if err != nil {
		return nil, despachador.RespuestaComprimir{}, err
	}

	respuesta := despachador.RespuestaComprimir{
		ID:               sol.ID,
		TamanoOriginal:   estadisticas.TamanoOriginal,
		TamanoComprimido: estadisticas.TamanoComprimido,
		Razon:            estadisticas.Razon,
	}

	if s.almacen != nil {
		clave, err := s.almacen.Guardar(ctx, blob)
		if err != nil {
			return nil, despachador.RespuestaComprimir{}, fmt.Errorf("error al guardar marco: %w", err)
		}
		respuesta.Clave = clave
	}

	s.difundir(sol, blob)

	sol.Info("marco comprimido",
		zap.Int("ancho", marco.Ancho()),
		zap.Int("alto", marco.Alto()),
		zap.Int("tamano_original", estadisticas.TamanoOriginal),
		zap.Int("tamano_comprimido", estadisticas.TamanoComprimido),
		zap.Float64("razon", estadisticas.Razon),
	)
	return blob, respuesta, nil
}

// difundir reenvía el blob a los brokers y a los observadores CoAP.
// Una falla de difusión se registra pero no invalida la compresión.
func (s *Servidor) difundir(sol *registro.Solicitud, blob []byte) {
	for _, difusor := range s.difusores {
		if err := difusor.PublicarComprimido(s.topico, blob); err != nil {
			sol.Error("error al difundir marco", err, zap.String("topico", s.topico))
		}
	}
	if err := s.observadores.PublicarComprimido(s.topico, blob); err != nil {
		sol.Error("error al notificar observadores CoAP", err)
	}
}

// descomprimir reconstruye el marco de un blob
func (s *Servidor) descomprimir(sol *registro.Solicitud, blob []byte) (despachador.RespuestaDescomprimir, error) {
	marco, err := s.pipeline.Descomprimir(blob)
	if err != nil {
		if errors.Is(err, pipeline.ErrMarcoDemasiadoGrande) {
			return despachador.RespuestaDescomprimir{}, err
		}
		return despachador.RespuestaDescomprimir{}, &errorCliente{err}
	}

	sol.Info("marco descomprimido", zap.Int("ancho", marco.Ancho()), zap.Int("alto", marco.Alto()))
	return despachador.NuevaRespuestaDescomprimir(marco), nil
}

// obtener lee un blob del almacén
func (s *Servidor) obtener(ctx context.Context, clave string) ([]byte, error) {
	if s.almacen == nil {
		return nil, almacen.ErrNoEncontrado
	}
	return s.almacen.Obtener(ctx, clave)
}

// estado resume la configuración del servidor
func (s *Servidor) estado() despachador.RespuestaEstado {
	config := s.pipeline.Configuracion()
	return despachador.RespuestaEstado{
		CompresionBloque: string(config.CompresionBloque),
		Formato:          string(config.Formato),
		MaximoCeldas:     config.MaximoCeldas,
		Almacen:          s.almacen != nil,
		Difusores:        len(s.difusores),
		Observadores:     s.observadores.Cantidad(),
	}
}

// clasificarError traduce un error a un estado HTTP y al cuerpo de respuesta
func clasificarError(err error) (int, despachador.RespuestaError) {
	respuesta := despachador.RespuestaError{
		Error: err.Error(),
		Etapa: string(pipeline.EtapaDe(err)),
	}

	var errMaxBytes *http.MaxBytesError
	var errCliente *errorCliente
	switch {
	case errors.Is(err, pipeline.ErrMarcoDemasiadoGrande),
		errors.Is(err, errCuerpoGrande),
		errors.As(err, &errMaxBytes):
		return http.StatusRequestEntityTooLarge, respuesta
	case errors.Is(err, almacen.ErrNoEncontrado):
		return http.StatusNotFound, respuesta
	case errors.Is(err, almacen.ErrClaveInvalida),
		errors.As(err, &errCliente):
		return http.StatusBadRequest, respuesta
	default:
		return http.StatusInternalServerError, respuesta
	}
}
