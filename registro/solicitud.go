package registro

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Solicitud agrupa las líneas de registro de una operación bajo un mismo id.
//
// Uso:
//
//	sol := registro.IniciarSolicitud("comprimir")
//	defer sol.Fin()
//
// Fin registra la línea de cierre con la duración; llamarlo más de una vez no tiene efecto.
type Solicitud struct {
	ID        string
	Operacion string

	logger *zap.Logger
	inicio time.Time
	fin    sync.Once
}

// IniciarSolicitud abre una solicitud sobre el logger del proceso
func IniciarSolicitud(operacion string) *Solicitud {
	return NuevaSolicitud(Logger(), operacion)
}

// NuevaSolicitud abre una solicitud sobre un logger dado
func NuevaSolicitud(logger *zap.Logger, operacion string) *Solicitud {
	id := uuid.NewString()
	sol := &Solicitud{
		ID:        id,
		Operacion: operacion,
		logger:    logger.With(zap.String("id", id), zap.String("operacion", operacion)),
		inicio:    time.Now(),
	}
	sol.logger.Info("inicio de solicitud")
	return sol
}

// Logger retorna un logger que incluye el id y la operación en cada línea
func (s *Solicitud) Logger() *zap.Logger {
	return s.logger
}

// Info registra un evento de la solicitud
func (s *Solicitud) Info(mensaje string, campos ...zap.Field) {
	s.logger.Info(mensaje, campos...)
}

// Error registra un error de la solicitud
func (s *Solicitud) Error(mensaje string, err error, campos ...zap.Field) {
	s.logger.Error(mensaje, append(campos, zap.Error(err))...)
}

// Fin cierra la solicitud registrando su duración
func (s *Solicitud) Fin() {
	s.fin.Do(func() {
		s.logger.Info("fin de solicitud", zap.Duration("duracion", time.Since(s.inicio)))
	})
}
