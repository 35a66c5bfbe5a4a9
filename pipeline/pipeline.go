package pipeline

/*
## Pipeline de compresión de marcos

Comprimir:

	Marco ──RLE──▶ MarcoComprimido ──serializar──▶ bytes ──compresor de bloque──▶ blob

Descomprimir recorre el mismo camino en sentido inverso.

Formato del blob:

	+---------------------+-----------------------------------------+
	| código de algoritmo | flujo comprimido (serialización versionada) |
	+---------------------+-----------------------------------------+
	        1 B

El código de algoritmo permite que cualquier Pipeline descomprima cualquier blob,
sin importar qué algoritmo tenga configurado.

Cada error se envuelve en *ErrorEtapa indicando la etapa donde ocurrió;
errors.As llega al error tipado de tipos (ErrorCorridaVacia, ErrorDescompresion, ...).
No hay reintentos ni recuperación parcial. El Pipeline no guarda estado mutable
y puede usarse desde varias goroutines.
*/

import (
	"errors"
	"fmt"

	"github.com/cbiale/asciiwave/compresor"
	"github.com/cbiale/asciiwave/serializador"
	"github.com/cbiale/asciiwave/tipos"
)

// Etapa identifica la parte del pipeline donde ocurrió un error
type Etapa string

// Valores posibles para Etapa
const (
	EtapaValidacion    Etapa = "validacion"
	EtapaCodificacion  Etapa = "codificacion"
	EtapaSerializacion Etapa = "serializacion"
	EtapaCompresion    Etapa = "compresion"
)

var errBlobVacio = errors.New("blob vacío: falta el código de algoritmo")

// ErrMarcoDemasiadoGrande indica que el marco supera Configuracion.MaximoCeldas
var ErrMarcoDemasiadoGrande = errors.New("el marco supera la cantidad máxima de celdas")

// ErrorEtapa asocia un error con la etapa del pipeline que lo produjo
type ErrorEtapa struct {
	Etapa Etapa
	Err   error
}

func (e *ErrorEtapa) Error() string {
	return fmt.Sprintf("etapa %s: %v", e.Etapa, e.Err)
}

func (e *ErrorEtapa) Unwrap() error {
	return e.Err
}

// EtapaDe retorna la etapa de un error del pipeline, o "" si no proviene de él
func EtapaDe(err error) Etapa {
	var errEtapa *ErrorEtapa
	if errors.As(err, &errEtapa) {
		return errEtapa.Etapa
	}
	return ""
}

// Configuracion del pipeline
type Configuracion struct {
	CompresionBloque tipos.TipoCompresionBloque `yaml:"compresion_bloque"`
	Formato          tipos.FormatoSerializacion `yaml:"formato"`
	MaximoCeldas     int                        `yaml:"maximo_celdas"` // SinLimite desactiva la cota
}

const (
	// MaximoCeldasPorDefecto acota el tamaño de los marcos aceptados
	MaximoCeldasPorDefecto = 1_000_000
	// SinLimite desactiva la cota de celdas; debe pedirse explícitamente
	SinLimite = -1
)

// AplicarDefaults completa los campos vacíos. MaximoCeldas en 0 pasa a
// MaximoCeldasPorDefecto.
func (c *Configuracion) AplicarDefaults() {
	if c.CompresionBloque == "" {
		c.CompresionBloque = tipos.Gzip
	}
	if c.Formato == "" {
		c.Formato = tipos.FormatoCBOR
	}
	if c.MaximoCeldas == 0 {
		c.MaximoCeldas = MaximoCeldasPorDefecto
	}
}

// Validar verifica que la configuración sea utilizable
func (c *Configuracion) Validar() error {
	if err := c.CompresionBloque.Validar(); err != nil {
		return err
	}
	if err := c.Formato.Validar(); err != nil {
		return err
	}
	if c.MaximoCeldas < SinLimite {
		return fmt.Errorf("maximo_celdas inválido: %d (usar %d para sin límite)", c.MaximoCeldas, SinLimite)
	}
	return nil
}

// Estadisticas de una compresión
type Estadisticas struct {
	TamanoOriginal   int     // bytes de la forma RLE serializada
	TamanoComprimido int     // bytes del blob completo
	Razon            float64 // TamanoComprimido / TamanoOriginal, 0 si el original es vacío
}

// Pipeline compone el codificador RLE, el serializador y un compresor de bloque
type Pipeline struct {
	config    Configuracion
	codigo    byte
	compresor compresor.CompresorBloque
	rle       compresor.CompresorRLE
}

// NuevoPipeline crea un pipeline validando la configuración.
// Los campos vacíos toman los valores por defecto, incluida la cota de celdas.
func NuevoPipeline(config Configuracion) (*Pipeline, error) {
	config.AplicarDefaults()
	if err := config.Validar(); err != nil {
		return nil, fmt.Errorf("configuración de pipeline inválida: %w", err)
	}

	codigo, err := config.CompresionBloque.Codigo()
	if err != nil {
		return nil, err
	}

	bloque, err := compresor.ObtenerCompresorBloque(config.CompresionBloque)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:    config,
		codigo:    codigo,
		compresor: bloque,
	}, nil
}

// Configuracion retorna la configuración efectiva
func (p *Pipeline) Configuracion() Configuracion {
	return p.config
}

// Comprimir produce el blob comprimido de un marco
func (p *Pipeline) Comprimir(marco tipos.Marco) ([]byte, error) {
	blob, _, err := p.ComprimirConEstadisticas(marco)
	return blob, err
}

// ComprimirConEstadisticas comprime un marco y reporta los tamaños involucrados
func (p *Pipeline) ComprimirConEstadisticas(marco tipos.Marco) ([]byte, Estadisticas, error) {
	if p.config.MaximoCeldas > 0 && marco.CantidadCeldas() > p.config.MaximoCeldas {
		return nil, Estadisticas{}, &ErrorEtapa{
			Etapa: EtapaValidacion,
			Err:   fmt.Errorf("%w: %d > %d", ErrMarcoDemasiadoGrande, marco.CantidadCeldas(), p.config.MaximoCeldas),
		}
	}

	comprimido := p.rle.Codificar(marco)

	serializado, err := serializador.Serializar(comprimido, p.config.Formato)
	if err != nil {
		return nil, Estadisticas{}, &ErrorEtapa{Etapa: EtapaSerializacion, Err: err}
	}

	flujo, err := p.compresor.Comprimir(serializado)
	if err != nil {
		return nil, Estadisticas{}, &ErrorEtapa{Etapa: EtapaCompresion, Err: err}
	}

	blob := make([]byte, 0, 1+len(flujo))
	blob = append(blob, p.codigo)
	blob = append(blob, flujo...)

	estadisticas := Estadisticas{
		TamanoOriginal:   len(serializado),
		TamanoComprimido: len(blob),
		Razon:            compresor.RazonCompresion(serializado, blob),
	}
	return blob, estadisticas, nil
}

// Descomprimir reconstruye el marco a partir de un blob producido por Comprimir
func (p *Pipeline) Descomprimir(datos []byte) (tipos.Marco, error) {
	if len(datos) == 0 {
		return nil, &ErrorEtapa{
			Etapa: EtapaCompresion,
			Err:   &tipos.ErrorDescompresion{Err: errBlobVacio},
		}
	}

	tipo, err := tipos.CompresionBloqueDesdeCodigo(datos[0])
	if err != nil {
		return nil, &ErrorEtapa{
			Etapa: EtapaCompresion,
			Err:   &tipos.ErrorDescompresion{Err: err},
		}
	}

	bloque, err := compresor.ObtenerCompresorBloque(tipo)
	if err != nil {
		return nil, &ErrorEtapa{Etapa: EtapaCompresion, Err: &tipos.ErrorDescompresion{Algoritmo: tipo, Err: err}}
	}

	serializado, err := bloque.Descomprimir(datos[1:])
	if err != nil {
		return nil, &ErrorEtapa{Etapa: EtapaCompresion, Err: err}
	}

	comprimido, err := serializador.Deserializar(serializado)
	if err != nil {
		return nil, &ErrorEtapa{Etapa: EtapaSerializacion, Err: err}
	}

	// se acota con la mayor de las dos alturas: las filas sobrantes se expanden
	// antes de que el decodificador compare la cantidad de filas con Alto
	if p.config.MaximoCeldas > 0 && comprimido.Ancho > 0 && comprimido.Alto > 0 {
		filas := max(uint64(comprimido.Alto), uint64(len(comprimido.Filas)))
		if uint64(comprimido.Ancho)*filas > uint64(p.config.MaximoCeldas) {
			return nil, &ErrorEtapa{
				Etapa: EtapaValidacion,
				Err: fmt.Errorf("%w: %dx%d > %d", ErrMarcoDemasiadoGrande,
					comprimido.Ancho, filas, p.config.MaximoCeldas),
			}
		}
	}

	marco, err := p.rle.Decodificar(comprimido)
	if err != nil {
		return nil, &ErrorEtapa{Etapa: EtapaCodificacion, Err: err}
	}

	return marco, nil
}
