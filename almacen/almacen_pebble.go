package almacen

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// prefijo de las claves de marcos dentro de la base
const prefijoMarco = "marco/"

// AlmacenPebble guarda los blobs en una base Pebble local
type AlmacenPebble struct {
	db *pebble.DB
}

// AbrirPebble abre (o crea) la base en el directorio indicado.
// Con fs nil se usa el sistema de archivos del sistema operativo;
// vfs.NewMem() permite una base en memoria.
func AbrirPebble(directorio string, fs vfs.FS) (*AlmacenPebble, error) {
	opciones := &pebble.Options{}
	if fs != nil {
		opciones.FS = fs
	}

	db, err := pebble.Open(directorio, opciones)
	if err != nil {
		return nil, fmt.Errorf("error al abrir pebble en %q: %w", directorio, err)
	}
	return &AlmacenPebble{db: db}, nil
}

// Cerrar libera la base
func (a *AlmacenPebble) Cerrar() error {
	return a.db.Close()
}

func claveMarco(clave string) []byte {
	return []byte(prefijoMarco + clave)
}

// Guardar escribe el blob bajo su clave de contenido
func (a *AlmacenPebble) Guardar(ctx context.Context, datos []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clave := ClaveContenido(datos)
	if err := a.db.Set(claveMarco(clave), datos, pebble.Sync); err != nil {
		return "", fmt.Errorf("error al guardar marco %s: %w", clave, err)
	}
	return clave, nil
}

// Obtener lee el blob de una clave
func (a *AlmacenPebble) Obtener(ctx context.Context, clave string) ([]byte, error) {
	if err := ValidarClave(clave); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	valor, closer, err := a.db.Get(claveMarco(clave))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNoEncontrado
	}
	if err != nil {
		return nil, fmt.Errorf("error al leer marco %s: %w", clave, err)
	}
	// el slice de Get solo es válido hasta cerrar closer
	datos := append([]byte{}, valor...)
	if err := closer.Close(); err != nil {
		return nil, err
	}

	if err := verificarContenido(clave, datos); err != nil {
		return nil, err
	}
	return datos, nil
}

// Eliminar borra el blob de una clave
func (a *AlmacenPebble) Eliminar(ctx context.Context, clave string) error {
	if err := ValidarClave(clave); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := a.db.Delete(claveMarco(clave), pebble.Sync); err != nil {
		return fmt.Errorf("error al eliminar marco %s: %w", clave, err)
	}
	return nil
}
