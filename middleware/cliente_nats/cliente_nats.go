package cliente_nats

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cbiale/asciiwave/middleware"
	"github.com/cbiale/asciiwave/pipeline"
	"github.com/cbiale/asciiwave/tipos"
)

// Configuracion del cliente NATS
type Configuracion struct {
	URL    string `yaml:"url"`    // ej: nats://localhost:4222
	Nombre string `yaml:"nombre"` // nombre de la conexión
	Topico string `yaml:"topico"` // tópico donde el servidor difunde los marcos
}

// AplicarDefaults completa los campos vacíos
func (c *Configuracion) AplicarDefaults() {
	if c.Nombre == "" {
		c.Nombre = "asciiwave"
	}
	if c.Topico == "" {
		c.Topico = "/asciiwave/marcos"
	}
}

// Validar verifica la configuración
func (c Configuracion) Validar() error {
	if c.URL == "" {
		return errors.New("URL de NATS es requerida")
	}
	return nil
}

// SujetoNATS traduce un tópico con barras (/a/b) a un sujeto NATS (a.b)
func SujetoNATS(topico string) string {
	return strings.ReplaceAll(strings.Trim(topico, "/"), "/", ".")
}

// ClienteNATS implementa middleware.Cliente sobre nats.go
type ClienteNATS struct {
	conexion *nats.Conn
	pipeline *pipeline.Pipeline
	logger   *zap.Logger

	mu            sync.Mutex
	suscripciones map[string]*nats.Subscription
}

var _ middleware.Cliente = (*ClienteNATS)(nil)

// Conectar abre la conexión con el servidor NATS
func Conectar(cfg Configuracion, p *pipeline.Pipeline, logger *zap.Logger) (*ClienteNATS, error) {
	cfg.AplicarDefaults()
	if err := cfg.Validar(); err != nil {
		return nil, err
	}

	c := &ClienteNATS{
		pipeline:      p,
		logger:        logger.With(zap.String("url", cfg.URL)),
		suscripciones: make(map[string]*nats.Subscription),
	}

	conexion, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Nombre),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("conexión NATS perdida", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.logger.Info("conexión NATS restablecida")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("error al conectar a NATS %s: %w", cfg.URL, err)
	}
	c.conexion = conexion

	c.logger.Info("cliente NATS conectado")
	return c, nil
}

// Desconectar vacía las suscripciones pendientes y cierra la conexión
func (c *ClienteNATS) Desconectar() {
	if err := c.conexion.Drain(); err != nil {
		c.conexion.Close()
	}
	c.logger.Info("cliente NATS desconectado")
}

// Publicar comprime el marco y lo publica
func (c *ClienteNATS) Publicar(topico string, marco tipos.Marco) error {
	datos, err := middleware.Empaquetar(c.pipeline, topico, marco)
	if err != nil {
		return err
	}
	return c.publicar(topico, datos)
}

// PublicarComprimido publica un blob ya comprimido
func (c *ClienteNATS) PublicarComprimido(topico string, blob []byte) error {
	datos, err := middleware.EmpaquetarComprimido(topico, blob)
	if err != nil {
		return err
	}
	return c.publicar(topico, datos)
}

func (c *ClienteNATS) publicar(topico string, datos []byte) error {
	if err := c.conexion.Publish(SujetoNATS(topico), datos); err != nil {
		return fmt.Errorf("error al publicar en %s: %w", topico, err)
	}
	return nil
}

// Suscribir registra un manejador para los marcos de un tópico.
// Una nueva suscripción al mismo tópico reemplaza la anterior.
func (c *ClienteNATS) Suscribir(topico string, manejador middleware.CallbackFunc) error {
	suscripcion, err := c.conexion.Subscribe(SujetoNATS(topico), ManejadorMensajes(c.pipeline, c.logger, topico, manejador))
	if err != nil {
		return fmt.Errorf("error al suscribir a %s: %w", topico, err)
	}

	c.mu.Lock()
	anterior := c.suscripciones[topico]
	c.suscripciones[topico] = suscripcion
	c.mu.Unlock()

	if anterior != nil {
		_ = anterior.Unsubscribe()
	}
	return nil
}

// Desuscribir cancela la suscripción a un tópico
func (c *ClienteNATS) Desuscribir(topico string) error {
	c.mu.Lock()
	suscripcion, existe := c.suscripciones[topico]
	delete(c.suscripciones, topico)
	c.mu.Unlock()

	if !existe {
		return nil
	}
	if err := suscripcion.Unsubscribe(); err != nil {
		return fmt.Errorf("error al desuscribir de %s: %w", topico, err)
	}
	return nil
}

// ManejadorMensajes adapta un CallbackFunc a un nats.MsgHandler.
// El manejador recibe el tópico original, no el sujeto NATS.
func ManejadorMensajes(p *pipeline.Pipeline, logger *zap.Logger, topico string, manejador middleware.CallbackFunc) nats.MsgHandler {
	return func(msg *nats.Msg) {
		mensaje, marco, err := middleware.Desempaquetar(p, msg.Data)
		if err != nil {
			logger.Warn("mensaje NATS descartado", zap.String("sujeto", msg.Subject), zap.Error(err))
			return
		}
		if mensaje.Interno {
			return
		}
		manejador(topico, marco)
	}
}
