//go:build linux && (arm || arm64)

package fanctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openFan returns a fanDriver that drives the given BCM GPIO pin as a
// digital output through the Linux GPIO character device (libgpiod). It
// maps any duty > 0 to ON and duty == 0 to OFF, which is what a 2-wire fan
// switched by a transistor/MOSFET needs.
func openFan(pin int) (fanDriver, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("fanctl: invalid gpio pin %d", pin)
	}

	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("seoshub-fanctl"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodFan{chip: chip, line: line}, nil
	}

	return nil, fmt.Errorf("fanctl: gpio line %q not found (or busy)", lineName)
}

type gpiodFan struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodFan) SetDutyPercent(p float64) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("fanctl: gpio driver not initialized")
	}
	v := 0
	if p > 0 {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpiodFan) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
