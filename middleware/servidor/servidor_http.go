package servidor

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cbiale/asciiwave/registro"
)

// Cabeceras de la respuesta de POST /comprimir
const (
	CabeceraIdSolicitud      = "X-Id-Solicitud"
	CabeceraTamanoOriginal   = "X-Tamano-Original"
	CabeceraTamanoComprimido = "X-Tamano-Comprimido"
	CabeceraRazonCompresion  = "X-Razon-Compresion"
	CabeceraClaveMarco       = "X-Clave-Marco"
)

const tipoOctetos = "application/octet-stream"

// Handler retorna el manejador HTTP con todas las rutas
func (s *Servidor) Handler() http.Handler {
	eng := gin.New()
	eng.Use(gin.Recovery())

	eng.GET("/estado", s.manejarEstado)
	eng.POST("/comprimir", s.manejarComprimir)
	eng.POST("/descomprimir", s.manejarDescomprimir)
	eng.GET("/marcos/:clave", s.manejarObtenerMarco)

	return eng
}

// IniciarHTTP atiende solicitudes HTTP hasta que el servidor falle
func (s *Servidor) IniciarHTTP(direccion string) error {
	s.logger.Info("iniciando servidor HTTP", zap.String("direccion", direccion))
	return http.ListenAndServe(direccion, s.Handler())
}

// leerCuerpo lee el cuerpo completo respetando maximoCuerpo
func (s *Servidor) leerCuerpo(ctx *gin.Context) ([]byte, error) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, s.maximoCuerpo)
	cuerpo, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		var errMaxBytes *http.MaxBytesError
		if errors.As(err, &errMaxBytes) {
			return nil, errCuerpoGrande
		}
		return nil, &errorCliente{err}
	}
	return cuerpo, nil
}

// responderError escribe el error con su estado y lo registra
func responderError(ctx *gin.Context, sol *registro.Solicitud, err error) {
	estado, respuesta := clasificarError(err)
	if estado >= http.StatusInternalServerError {
		sol.Error("error interno", err)
	} else {
		sol.Info("solicitud rechazada", zap.Int("estado", estado), zap.String("error", respuesta.Error))
	}
	ctx.AbortWithStatusJSON(estado, respuesta)
}

func (s *Servidor) manejarEstado(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.estado())
}

func (s *Servidor) manejarComprimir(ctx *gin.Context) {
	sol := registro.NuevaSolicitud(s.logger, "comprimir")
	defer sol.Fin()
	ctx.Header(CabeceraIdSolicitud, sol.ID)

	cuerpo, err := s.leerCuerpo(ctx)
	if err != nil {
		responderError(ctx, sol, err)
		return
	}

	blob, respuesta, err := s.comprimir(ctx.Request.Context(), sol, cuerpo)
	if err != nil {
		responderError(ctx, sol, err)
		return
	}

	ctx.Header(CabeceraTamanoOriginal, strconv.Itoa(respuesta.TamanoOriginal))
	ctx.Header(CabeceraTamanoComprimido, strconv.Itoa(respuesta.TamanoComprimido))
	ctx.Header(CabeceraRazonCompresion, strconv.FormatFloat(respuesta.Razon, 'f', 6, 64))
	if respuesta.Clave != "" {
		ctx.Header(CabeceraClaveMarco, respuesta.Clave)
	}
	ctx.Data(http.StatusOK, tipoOctetos, blob)
}

func (s *Servidor) manejarDescomprimir(ctx *gin.Context) {
	sol := registro.NuevaSolicitud(s.logger, "descomprimir")
	defer sol.Fin()
	ctx.Header(CabeceraIdSolicitud, sol.ID)

	cuerpo, err := s.leerCuerpo(ctx)
	if err != nil {
		responderError(ctx, sol, err)
		return
	}

	respuesta, err := s.descomprimir(sol, cuerpo)
	if err != nil {
		responderError(ctx, sol, err)
		return
	}
	ctx.JSON(http.StatusOK, respuesta)
}

func (s *Servidor) manejarObtenerMarco(ctx *gin.Context) {
	sol := registro.NuevaSolicitud(s.logger, "obtener_marco")
	defer sol.Fin()
	ctx.Header(CabeceraIdSolicitud, sol.ID)

	clave := ctx.Param("clave")
	blob, err := s.obtener(ctx.Request.Context(), clave)
	if err != nil {
		responderError(ctx, sol, err)
		return
	}

	ctx.Header(CabeceraClaveMarco, clave)
	ctx.Data(http.StatusOK, tipoOctetos, blob)
}
