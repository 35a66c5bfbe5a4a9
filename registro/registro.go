package registro

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Formatos de salida soportados
const (
	FormatoJSON       = "json"
	FormatoConsola    = "consola"
	FormatoAutomatico = "auto" // consola si la salida es una terminal, json si no
)

// Configuracion del registro de eventos del proceso
type Configuracion struct {
	Nivel   string `yaml:"nivel"`   // debug, info, warn, error
	Archivo string `yaml:"archivo"` // ruta del archivo; vacío = stderr
	Formato string `yaml:"formato"` // json o consola
}

// AplicarDefaults completa los campos vacíos
func (c *Configuracion) AplicarDefaults() {
	if c.Nivel == "" {
		c.Nivel = "info"
	}
	if c.Archivo == "" {
		c.Archivo = "stderr"
	}
	if c.Formato == "" {
		c.Formato = FormatoJSON
	}
}

// Validar verifica nivel y formato
func (c *Configuracion) Validar() error {
	if _, err := zapcore.ParseLevel(c.Nivel); err != nil {
		return fmt.Errorf("nivel de registro inválido %q: %w", c.Nivel, err)
	}
	switch strings.ToLower(c.Formato) {
	case FormatoJSON, FormatoConsola, FormatoAutomatico:
	default:
		return fmt.Errorf("formato de registro inválido %q (json, consola o auto)", c.Formato)
	}
	return nil
}

// NuevoLogger construye un logger zap a partir de la configuración
func NuevoLogger(config Configuracion) (*zap.Logger, error) {
	config.AplicarDefaults()
	if err := config.Validar(); err != nil {
		return nil, err
	}

	nivel, _ := zapcore.ParseLevel(config.Nivel)

	salida, _, err := zap.Open(config.Archivo)
	if err != nil {
		return nil, fmt.Errorf("error al abrir salida de registro %q: %w", config.Archivo, err)
	}

	codificacion := zap.NewProductionEncoderConfig()
	codificacion.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if formatoEfectivo(config) == FormatoConsola {
		encoder = zapcore.NewConsoleEncoder(codificacion)
	} else {
		encoder = zapcore.NewJSONEncoder(codificacion)
	}

	core := zapcore.NewCore(encoder, salida, zap.NewAtomicLevelAt(nivel))
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(salida)), nil
}

// formatoEfectivo resuelve FormatoAutomatico según la salida configurada
func formatoEfectivo(config Configuracion) string {
	formato := strings.ToLower(config.Formato)
	if formato != FormatoAutomatico {
		return formato
	}
	var fd uintptr
	switch config.Archivo {
	case "stderr":
		fd = os.Stderr.Fd()
	case "stdout":
		fd = os.Stdout.Fd()
	default:
		return FormatoJSON
	}
	if term.IsTerminal(int(fd)) {
		return FormatoConsola
	}
	return FormatoJSON
}

var (
	global     *zap.Logger
	globalOnce sync.Once
	globalErr  error
)

// Inicializar crea el logger del proceso. Solo la primera llamada tiene efecto;
// las siguientes retornan el resultado de la primera.
func Inicializar(config Configuracion) error {
	globalOnce.Do(func() {
		global, globalErr = NuevoLogger(config)
		if globalErr != nil {
			global = zap.NewNop()
		}
	})
	return globalErr
}

// Logger retorna el logger del proceso, inicializándolo con valores por defecto si hace falta
func Logger() *zap.Logger {
	_ = Inicializar(Configuracion{})
	return global
}
