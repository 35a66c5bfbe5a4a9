package almacen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConfiguracionRedis del caché de marcos
type ConfiguracionRedis struct {
	Direccion  string        `yaml:"direccion"`  // ej: localhost:6379
	Contrasena string        `yaml:"contrasena"` // vacío = sin autenticación
	BaseDatos  int           `yaml:"base_datos"`
	Prefijo    string        `yaml:"prefijo"`    // prefijo de las claves; vacío = "asciiwave"
	Expiracion time.Duration `yaml:"expiracion"` // 0 = ExpiracionPorDefecto
}

// ExpiracionPorDefecto de las entradas del caché
const ExpiracionPorDefecto = 3 * time.Minute

// AplicarDefaults completa los campos vacíos
func (c *ConfiguracionRedis) AplicarDefaults() {
	if c.Prefijo == "" {
		c.Prefijo = "asciiwave"
	}
	if c.Expiracion == 0 {
		c.Expiracion = ExpiracionPorDefecto
	}
}

// Validar verifica la configuración
func (c ConfiguracionRedis) Validar() error {
	if c.Direccion == "" {
		return errors.New("direccion de Redis es requerida")
	}
	if c.BaseDatos < 0 {
		return fmt.Errorf("base_datos inválida: %d", c.BaseDatos)
	}
	if c.Expiracion < 0 {
		return fmt.Errorf("expiracion no puede ser negativa: %s", c.Expiracion)
	}
	return nil
}

// ClienteRedis son las operaciones de Redis que usa el almacén; *redis.Client la implementa
type ClienteRedis interface {
	Set(ctx context.Context, clave string, valor interface{}, expiracion time.Duration) *redis.StatusCmd
	Get(ctx context.Context, clave string) *redis.StringCmd
	Del(ctx context.Context, claves ...string) *redis.IntCmd
}

// NuevoClienteRedis crea un cliente a partir de la configuración
func NuevoClienteRedis(cfg ConfiguracionRedis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Direccion,
		Password: cfg.Contrasena,
		DB:       cfg.BaseDatos,
	})
}

// AlmacenRedis guarda los blobs en Redis con expiración; sirve como caché
// delante de un almacén persistente
type AlmacenRedis struct {
	cliente    ClienteRedis
	prefijo    string
	expiracion time.Duration
}

var _ Almacen = (*AlmacenRedis)(nil)

// NuevoAlmacenRedis crea el almacén sobre un cliente existente
func NuevoAlmacenRedis(cliente ClienteRedis, cfg ConfiguracionRedis) *AlmacenRedis {
	cfg.AplicarDefaults()
	return &AlmacenRedis{cliente: cliente, prefijo: cfg.Prefijo, expiracion: cfg.Expiracion}
}

func (a *AlmacenRedis) claveRedis(clave string) string {
	return a.prefijo + ":marco:" + clave
}

// Guardar escribe el blob y renueva su expiración
func (a *AlmacenRedis) Guardar(ctx context.Context, datos []byte) (string, error) {
	clave := ClaveContenido(datos)
	if err := a.cliente.Set(ctx, a.claveRedis(clave), datos, a.expiracion).Err(); err != nil {
		return "", fmt.Errorf("error al guardar marco %s en Redis: %w", clave, err)
	}
	return clave, nil
}

// Obtener lee el blob; una entrada expirada se reporta como ErrNoEncontrado
func (a *AlmacenRedis) Obtener(ctx context.Context, clave string) ([]byte, error) {
	if err := ValidarClave(clave); err != nil {
		return nil, err
	}

	datos, err := a.cliente.Get(ctx, a.claveRedis(clave)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoEncontrado
	}
	if err != nil {
		return nil, fmt.Errorf("error al leer marco %s de Redis: %w", clave, err)
	}

	if err := verificarContenido(clave, datos); err != nil {
		return nil, err
	}
	return datos, nil
}

// Eliminar borra el blob
func (a *AlmacenRedis) Eliminar(ctx context.Context, clave string) error {
	if err := ValidarClave(clave); err != nil {
		return err
	}
	if err := a.cliente.Del(ctx, a.claveRedis(clave)).Err(); err != nil {
		return fmt.Errorf("error al eliminar marco %s de Redis: %w", clave, err)
	}
	return nil
}
