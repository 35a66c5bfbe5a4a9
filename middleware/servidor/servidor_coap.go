package servidor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	coap "github.com/plgd-dev/go-coap/v3"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	"go.uber.org/zap"

	"github.com/cbiale/asciiwave/middleware"
	"github.com/cbiale/asciiwave/registro"
)

// datos de las conexiones de los observadores
type conexionCoAP struct {
	conexion mux.Conn
	token    []byte
}

// observadoresCoAP almacena observadores por tópico y les reenvía cada blob comprimido
type observadoresCoAP struct {
	mu        sync.Mutex
	porTopico map[string][]conexionCoAP
	secuencia atomic.Uint32 // valor de la opción observe
}

var _ middleware.Difusor = (*observadoresCoAP)(nil)

func nuevosObservadoresCoAP() *observadoresCoAP {
	return &observadoresCoAP{porTopico: make(map[string][]conexionCoAP)}
}

// siguiente retorna el próximo número de secuencia (24 bits)
func (o *observadoresCoAP) siguiente() uint32 {
	return o.secuencia.Add(1) & 0xFFFFFF
}

// Agregar registra un observador en un tópico
func (o *observadoresCoAP) Agregar(topico string, conexion mux.Conn, token []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.porTopico[topico] = append(o.porTopico[topico], conexionCoAP{conexion, append([]byte{}, token...)})
}

// Eliminar quita el observador identificado por su token
func (o *observadoresCoAP) Eliminar(topico string, token []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, c := range o.porTopico[topico] {
		if bytes.Equal(c.token, token) {
			o.porTopico[topico] = append(o.porTopico[topico][:i], o.porTopico[topico][i+1:]...)
			break
		}
	}
	// si no hay más observadores en el tópico, eliminarlo
	if len(o.porTopico[topico]) == 0 {
		delete(o.porTopico, topico)
	}
}

// Cantidad retorna el total de observadores registrados
func (o *observadoresCoAP) Cantidad() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, conexiones := range o.porTopico {
		total += len(conexiones)
	}
	return total
}

// PublicarComprimido notifica el blob a los observadores del tópico.
// Los observadores que fallan se descartan.
func (o *observadoresCoAP) PublicarComprimido(topico string, blob []byte) error {
	o.mu.Lock()
	conexiones := append([]conexionCoAP{}, o.porTopico[topico]...)
	o.mu.Unlock()
	if len(conexiones) == 0 {
		return nil
	}

	datos, err := middleware.EmpaquetarComprimido(topico, blob)
	if err != nil {
		return err
	}

	var errs []error
	secuencia := o.siguiente()
	for _, c := range conexiones {
		if err := enviarNotificacion(c.conexion, c.token, datos, int64(secuencia)); err != nil {
			errs = append(errs, err)
			o.Eliminar(topico, c.token)
		}
	}
	return errors.Join(errs...)
}

func enviarNotificacion(cc mux.Conn, token []byte, datos []byte, obs int64) error {
	m := cc.AcquireMessage(cc.Context())
	defer cc.ReleaseMessage(m)
	m.SetCode(codes.Content)
	m.SetToken(token)
	m.SetBody(bytes.NewReader(datos))
	m.SetContentFormat(message.AppCBOR)
	if obs >= 0 {
		m.SetObserve(uint32(obs))
	}
	return cc.WriteMessage(m)
}

// IniciarCoAP atiende solicitudes CoAP sobre UDP hasta que el servidor falle
func (s *Servidor) IniciarCoAP(direccion string) error {
	r := mux.NewRouter()
	// manejador para cualquier ruta
	r.DefaultHandle(mux.HandlerFunc(s.manejadorCoAP))

	s.logger.Info("iniciando servidor CoAP", zap.String("direccion", direccion))
	return coap.ListenAndServe("udp", direccion, r)
}

// actualizarObservador registra (obs 0) o da de baja (obs 1) un observador y
// retorna el número de secuencia de la respuesta. La respuesta a una baja no
// lleva la opción Observe, así que retorna -1.
func (s *Servidor) actualizarObservador(ruta string, conexion mux.Conn, token []byte, obs uint32) int64 {
	if obs != 0 {
		s.observadores.Eliminar(ruta, token)
		s.logger.Info("observador CoAP eliminado", zap.String("topico", ruta))
		return -1
	}
	s.observadores.Agregar(ruta, conexion, token)
	s.logger.Info("observador CoAP agregado", zap.String("topico", ruta))
	return int64(s.observadores.siguiente())
}

// manejadorCoAP maneja todas las solicitudes CoAP, independientemente de la ruta
func (s *Servidor) manejadorCoAP(w mux.ResponseWriter, r *mux.Message) {
	ruta, err := r.Path()
	if err != nil {
		s.logger.Warn("solicitud CoAP sin ruta", zap.Stringer("codigo", r.Code()), zap.Error(err))
		return
	}

	// obtengo si tiene observe
	obs, errObs := r.Options().Observe()
	if r.Code() == codes.GET && errObs == nil && ruta == s.topico {
		secuencia := s.actualizarObservador(ruta, w.Conn(), r.Token(), obs)

		datos, err := middleware.CodificarMensaje(middleware.Mensaje{Interno: true, Topico: ruta})
		if err == nil {
			err = enviarNotificacion(w.Conn(), r.Token(), datos, secuencia)
		}
		if err != nil {
			s.logger.Warn("error al responder al observador", zap.Error(err))
		}
		return
	}

	var cuerpo []byte
	if r.Code() == codes.POST {
		cuerpo, err = r.ReadBody()
		if err != nil {
			s.logger.Warn("error al leer el cuerpo CoAP", zap.Error(err))
			return
		}
	}

	respuesta := s.procesarCoAP(r.Context(), ruta, r.Code(), cuerpo)
	if err := w.SetResponse(respuesta.codigo, respuesta.formato, bytes.NewReader(respuesta.cuerpo)); err != nil {
		s.logger.Warn("error al enviar respuesta CoAP", zap.Error(err))
	}
}

// respuestaCoAP es el resultado de una solicitud, independiente de la conexión
type respuestaCoAP struct {
	codigo  codes.Code
	formato message.MediaType
	cuerpo  []byte
}

// procesarCoAP atiende las rutas con la misma lógica que el servidor HTTP
func (s *Servidor) procesarCoAP(ctx context.Context, ruta string, metodo codes.Code, cuerpo []byte) respuestaCoAP {
	switch {
	case ruta == "/estado":
		if metodo != codes.GET {
			return metodoNoPermitido()
		}
		return respuestaJSON(codes.Content, s.estado())

	case ruta == "/comprimir":
		if metodo != codes.POST {
			return metodoNoPermitido()
		}
		sol := registro.NuevaSolicitud(s.logger, "coap_comprimir")
		defer sol.Fin()

		if int64(len(cuerpo)) > s.maximoCuerpo {
			return s.errorCoAP(sol, errCuerpoGrande)
		}
		blob, _, err := s.comprimir(ctx, sol, cuerpo)
		if err != nil {
			return s.errorCoAP(sol, err)
		}
		return respuestaCoAP{codigo: codes.Content, formato: message.AppOctets, cuerpo: blob}

	case ruta == "/descomprimir":
		if metodo != codes.POST {
			return metodoNoPermitido()
		}
		sol := registro.NuevaSolicitud(s.logger, "coap_descomprimir")
		defer sol.Fin()

		if int64(len(cuerpo)) > s.maximoCuerpo {
			return s.errorCoAP(sol, errCuerpoGrande)
		}
		respuesta, err := s.descomprimir(sol, cuerpo)
		if err != nil {
			return s.errorCoAP(sol, err)
		}
		return respuestaJSON(codes.Content, respuesta)

	case strings.HasPrefix(ruta, "/marcos/"):
		if metodo != codes.GET {
			return metodoNoPermitido()
		}
		sol := registro.NuevaSolicitud(s.logger, "coap_obtener_marco")
		defer sol.Fin()

		blob, err := s.obtener(ctx, strings.TrimPrefix(ruta, "/marcos/"))
		if err != nil {
			return s.errorCoAP(sol, err)
		}
		return respuestaCoAP{codigo: codes.Content, formato: message.AppOctets, cuerpo: blob}

	default:
		return respuestaCoAP{codigo: codes.NotFound, formato: message.TextPlain, cuerpo: []byte("ruta desconocida: " + ruta)}
	}
}

func metodoNoPermitido() respuestaCoAP {
	return respuestaCoAP{codigo: codes.MethodNotAllowed, formato: message.TextPlain, cuerpo: []byte("método no soportado")}
}

func respuestaJSON(codigo codes.Code, v any) respuestaCoAP {
	datos, err := json.Marshal(v)
	if err != nil {
		return respuestaCoAP{codigo: codes.InternalServerError, formato: message.TextPlain, cuerpo: []byte(err.Error())}
	}
	return respuestaCoAP{codigo: codigo, formato: message.AppJSON, cuerpo: datos}
}

// errorCoAP traduce el error con la misma clasificación que HTTP
func (s *Servidor) errorCoAP(sol *registro.Solicitud, err error) respuestaCoAP {
	estado, respuesta := clasificarError(err)
	if estado >= http.StatusInternalServerError {
		sol.Error("error interno", err)
	} else {
		sol.Info("solicitud rechazada", zap.Int("estado", estado), zap.String("error", respuesta.Error))
	}
	return respuestaJSON(codigoCoAP(estado), respuesta)
}

// codigoCoAP convierte un estado HTTP en su equivalente CoAP
func codigoCoAP(estado int) codes.Code {
	switch estado {
	case http.StatusBadRequest:
		return codes.BadRequest
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusRequestEntityTooLarge:
		return codes.RequestEntityTooLarge
	default:
		return codes.InternalServerError
	}
}
