// Package configuracion carga la configuración del servicio desde un archivo YAML.
// Los archivos .json y .jsonc se aceptan también; sus comentarios y comas finales
// se eliminan antes de interpretarlos.
//
// La ruta se indica con --config o con la variable ASCIIWAVE_CONFIG.
// Las referencias ${VARIABLE} del archivo se reemplazan por variables de entorno,
// lo que permite dejar las credenciales fuera del archivo. Un $ sin llaves se
// conserva tal cual.
package configuracion

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/cbiale/asciiwave/almacen"
	"github.com/cbiale/asciiwave/middleware/cliente_kafka"
	"github.com/cbiale/asciiwave/middleware/cliente_mqtt"
	"github.com/cbiale/asciiwave/middleware/cliente_nats"
	"github.com/cbiale/asciiwave/pipeline"
	"github.com/cbiale/asciiwave/registro"
	"github.com/cbiale/asciiwave/tipos"
)

// VariableEntorno contiene la ruta del archivo cuando no se usa --config
const VariableEntorno = "ASCIIWAVE_CONFIG"

// Configuracion del servicio completo
type Configuracion struct {
	Pipeline pipeline.Configuracion       `yaml:"pipeline"`
	Registro registro.Configuracion       `yaml:"registro"`
	HTTP     ConfiguracionHTTP            `yaml:"http"`
	CoAP     ConfiguracionCoAP            `yaml:"coap"`
	Almacen  ConfiguracionAlmacen         `yaml:"almacen"`
	MQTT     *cliente_mqtt.Configuracion  `yaml:"mqtt,omitempty"`  // nil = sin difusión MQTT
	NATS     *cliente_nats.Configuracion  `yaml:"nats,omitempty"`  // nil = sin difusión NATS
	Kafka    *cliente_kafka.Configuracion `yaml:"kafka,omitempty"` // nil = sin difusión Kafka
}

// ConfiguracionHTTP del servidor HTTP
type ConfiguracionHTTP struct {
	Direccion    string `yaml:"direccion"`     // ej: :8080; vacío = deshabilitado
	MaximoCuerpo int64  `yaml:"maximo_cuerpo"` // bytes
}

// ConfiguracionCoAP del servidor CoAP
type ConfiguracionCoAP struct {
	Direccion string `yaml:"direccion"` // ej: :5683; vacío = deshabilitado
}

// ConfiguracionAlmacen de los blobs comprimidos
type ConfiguracionAlmacen struct {
	Directorio string                      `yaml:"directorio"`      // base Pebble local; vacío = sin almacén local
	S3         *tipos.ConfiguracionS3      `yaml:"s3,omitempty"`    // archivo S3; nil = sin archivo
	Redis      *almacen.ConfiguracionRedis `yaml:"redis,omitempty"` // caché delante de los anteriores; nil = sin caché
}

// PorDefecto retorna la configuración usada cuando no hay archivo
func PorDefecto() *Configuracion {
	c := &Configuracion{
		HTTP: ConfiguracionHTTP{Direccion: ":8080"},
	}
	c.AplicarDefaults()
	return c
}

// Cargar lee y valida el archivo indicado. Con ruta vacía usa ASCIIWAVE_CONFIG;
// si tampoco está definida retorna PorDefecto.
func Cargar(ruta string) (*Configuracion, error) {
	if ruta == "" {
		ruta = os.Getenv(VariableEntorno)
	}
	if ruta == "" {
		return PorDefecto(), nil
	}

	datos, err := os.ReadFile(ruta)
	if err != nil {
		return nil, fmt.Errorf("error al leer configuración: %w", err)
	}

	switch strings.ToLower(filepath.Ext(ruta)) {
	case ".json", ".jsonc":
		datos = jsonc.ToJSON(datos)
	}

	c, err := Parsear(datos)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ruta, err)
	}
	return c, nil
}

var referenciaEntorno = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandirEntorno reemplaza solo las referencias ${VARIABLE}
func expandirEntorno(texto string) string {
	return referenciaEntorno.ReplaceAllStringFunc(texto, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

// Parsear interpreta el contenido YAML (o JSON), aplica defaults y valida
func Parsear(datos []byte) (*Configuracion, error) {
	expandido := expandirEntorno(string(datos))

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expandido)))
	decoder.KnownFields(true)

	c := &Configuracion{}
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML inválido: %w", err)
	}

	c.AplicarDefaults()
	if err := c.Validar(); err != nil {
		return nil, err
	}
	return c, nil
}

// AplicarDefaults completa los campos vacíos de todas las secciones
func (c *Configuracion) AplicarDefaults() {
	c.Pipeline.AplicarDefaults()
	c.Registro.AplicarDefaults()
	if c.HTTP.MaximoCuerpo == 0 {
		c.HTTP.MaximoCuerpo = 8 << 20
	}
	if c.Almacen.S3 != nil {
		c.Almacen.S3.AplicarDefaults()
	}
	if c.Almacen.Redis != nil {
		c.Almacen.Redis.AplicarDefaults()
	}
	if c.MQTT != nil {
		c.MQTT.AplicarDefaults()
	}
	if c.NATS != nil {
		c.NATS.AplicarDefaults()
	}
	if c.Kafka != nil {
		c.Kafka.AplicarDefaults()
	}
}

// Validar verifica todas las secciones y reporta todos los errores juntos
func (c *Configuracion) Validar() error {
	var errs []error
	if err := c.Pipeline.Validar(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	if err := c.Registro.Validar(); err != nil {
		errs = append(errs, fmt.Errorf("registro: %w", err))
	}
	if c.HTTP.MaximoCuerpo < 0 {
		errs = append(errs, fmt.Errorf("http: maximo_cuerpo no puede ser negativo: %d", c.HTTP.MaximoCuerpo))
	}
	if c.HTTP.Direccion == "" && c.CoAP.Direccion == "" {
		errs = append(errs, errors.New("se requiere al menos http.direccion o coap.direccion"))
	}
	if c.Almacen.S3 != nil {
		if err := c.Almacen.S3.Validar(); err != nil {
			errs = append(errs, fmt.Errorf("almacen.s3: %w", err))
		}
	}
	if c.Almacen.Redis != nil {
		if err := c.Almacen.Redis.Validar(); err != nil {
			errs = append(errs, fmt.Errorf("almacen.redis: %w", err))
		}
	}
	if c.MQTT != nil {
		if err := c.MQTT.Validar(); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if c.NATS != nil {
		if err := c.NATS.Validar(); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Validar(); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	return errors.Join(errs...)
}
