package cliente_mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cbiale/asciiwave/middleware"
	"github.com/cbiale/asciiwave/pipeline"
	"github.com/cbiale/asciiwave/tipos"
)

// Configuracion del cliente MQTT
type Configuracion struct {
	Broker    string `yaml:"broker"`     // ej: tcp://localhost:1883
	ClienteID string `yaml:"cliente_id"` // vacío = generado
	QoS       byte   `yaml:"qos"`        // 0, 1 o 2
	Topico    string `yaml:"topico"`     // tópico donde el servidor difunde los marcos
}

// AplicarDefaults completa los campos vacíos
func (c *Configuracion) AplicarDefaults() {
	if c.ClienteID == "" {
		c.ClienteID = "asciiwave-" + uuid.NewString()[:8]
	}
	if c.Topico == "" {
		c.Topico = "/asciiwave/marcos"
	}
}

// Validar verifica la configuración
func (c Configuracion) Validar() error {
	if c.Broker == "" {
		return errors.New("broker MQTT es requerido")
	}
	if c.QoS > 2 {
		return fmt.Errorf("QoS MQTT inválido: %d", c.QoS)
	}
	return nil
}

// tiempo máximo de espera de cada operación contra el broker
const espera = 5 * time.Second

// ClienteMQTT implementa middleware.Cliente sobre paho
type ClienteMQTT struct {
	cliente  mqtt.Client
	qos      byte
	pipeline *pipeline.Pipeline
	logger   *zap.Logger

	mu            sync.Mutex
	suscripciones map[string]middleware.CallbackFunc
}

var _ middleware.Cliente = (*ClienteMQTT)(nil)

// Conectar crea un cliente y lo conecta al broker
func Conectar(cfg Configuracion, p *pipeline.Pipeline, logger *zap.Logger) (*ClienteMQTT, error) {
	cfg.AplicarDefaults()
	if err := cfg.Validar(); err != nil {
		return nil, err
	}

	c := &ClienteMQTT{
		qos:           cfg.QoS,
		pipeline:      p,
		logger:        logger.With(zap.String("broker", cfg.Broker)),
		suscripciones: make(map[string]middleware.CallbackFunc),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClienteID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.alReconectar)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("conexión MQTT perdida", zap.Error(err))
	})

	c.cliente = mqtt.NewClient(opts)
	if err := esperar(c.cliente.Connect()); err != nil {
		return nil, fmt.Errorf("error al conectar al broker MQTT %s: %w", cfg.Broker, err)
	}

	c.logger.Info("cliente MQTT conectado", zap.String("cliente_id", cfg.ClienteID))
	return c, nil
}

// esperar bloquea hasta que el token termine o venza el tiempo
func esperar(token mqtt.Token) error {
	if !token.WaitTimeout(espera) {
		return errors.New("tiempo de espera agotado")
	}
	return token.Error()
}

// alReconectar restablece las suscripciones después de una reconexión
func (c *ClienteMQTT) alReconectar(cliente mqtt.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topico, manejador := range c.suscripciones {
		cliente.Subscribe(topico, c.qos, ManejadorMensajes(c.pipeline, c.logger, manejador))
	}
}

// Desconectar cierra la conexión con el broker
func (c *ClienteMQTT) Desconectar() {
	c.cliente.Disconnect(250)
	c.logger.Info("cliente MQTT desconectado")
}

// Publicar comprime el marco y lo publica
func (c *ClienteMQTT) Publicar(topico string, marco tipos.Marco) error {
	datos, err := middleware.Empaquetar(c.pipeline, topico, marco)
	if err != nil {
		return err
	}
	return c.publicar(topico, datos)
}

// PublicarComprimido publica un blob ya comprimido
func (c *ClienteMQTT) PublicarComprimido(topico string, blob []byte) error {
	datos, err := middleware.EmpaquetarComprimido(topico, blob)
	if err != nil {
		return err
	}
	return c.publicar(topico, datos)
}

func (c *ClienteMQTT) publicar(topico string, datos []byte) error {
	if err := esperar(c.cliente.Publish(topico, c.qos, false, datos)); err != nil {
		return fmt.Errorf("error al publicar en %s: %w", topico, err)
	}
	return nil
}

// Suscribir registra un manejador para los marcos de un tópico
func (c *ClienteMQTT) Suscribir(topico string, manejador middleware.CallbackFunc) error {
	if err := esperar(c.cliente.Subscribe(topico, c.qos, ManejadorMensajes(c.pipeline, c.logger, manejador))); err != nil {
		return fmt.Errorf("error al suscribir a %s: %w", topico, err)
	}

	c.mu.Lock()
	c.suscripciones[topico] = manejador
	c.mu.Unlock()
	return nil
}

// Desuscribir cancela la suscripción a un tópico
func (c *ClienteMQTT) Desuscribir(topico string) error {
	c.mu.Lock()
	delete(c.suscripciones, topico)
	c.mu.Unlock()

	if err := esperar(c.cliente.Unsubscribe(topico)); err != nil {
		return fmt.Errorf("error al desuscribir de %s: %w", topico, err)
	}
	return nil
}

// ManejadorMensajes adapta un CallbackFunc a un mqtt.MessageHandler.
// Los mensajes internos se ignoran; los inválidos se registran y se descartan.
func ManejadorMensajes(p *pipeline.Pipeline, logger *zap.Logger, manejador middleware.CallbackFunc) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		mensaje, marco, err := middleware.Desempaquetar(p, msg.Payload())
		if err != nil {
			logger.Warn("mensaje MQTT descartado", zap.String("topico", msg.Topic()), zap.Error(err))
			return
		}
		if mensaje.Interno {
			return
		}
		manejador(msg.Topic(), marco)
	}
}
