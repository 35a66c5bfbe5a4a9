package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cbiale/asciiwave/compresor"
	"github.com/cbiale/asciiwave/tipos"
)

// renderizar dibuja el marco para la terminal. Cada corrida de celdas iguales
// se pinta con un solo estilo; lipgloss descarta los colores si la salida no
// los soporta.
func renderizar(marco tipos.Marco, conColor bool) string {
	if !conColor || !marco.TieneColor() {
		return marco.Texto()
	}

	rle := &compresor.CompresorRLE{}
	comprimido := rle.Codificar(marco)

	var b strings.Builder
	for i, fila := range comprimido.Filas {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, corrida := range fila {
			texto := strings.Repeat(string(corrida.Celda.Caracter), int(corrida.Cantidad))
			if corrida.Celda.Color != nil {
				texto = lipgloss.NewStyle().Foreground(colorTerminal(*corrida.Celda.Color)).Render(texto)
			}
			b.WriteString(texto)
		}
	}
	return b.String()
}

func colorTerminal(c tipos.RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
