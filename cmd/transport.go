package cmd

import (
	"fmt"

	"github.com/autotap/autotap/internal/config"
	"github.com/autotap/autotap/pkg/device"
	"github.com/autotap/autotap/pkg/device/serialtouch"
	"github.com/autotap/autotap/pkg/device/shell"
	"github.com/autotap/autotap/pkg/device/wsbridge"
	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/sshutil"
)

// newTransport builds the transport named by the configuration. dryRun
// replaces it with a Recorder that only logs.
func newTransport(cfg *config.Config, l logger.Logger, dryRun bool) (device.Transport, error) {
	t := cfg.Transport
	if dryRun || t.Kind == config.KindRecorder {
		return device.NewRecorder(device.Size{Width: t.Recorder.Width, Height: t.Recorder.Height}, l), nil
	}
	switch t.Kind {
	case config.KindADB, config.KindSSH:
		var backend shell.Backend
		if t.Kind == config.KindADB {
			backend = &shell.ADB{Path: t.ADB.Path, Serial: t.ADB.Serial}
		} else {
			if t.SSH.Addr == "" {
				return nil, fmt.Errorf("transport ssh: no addr configured")
			}
			known := t.SSH.KnownHosts
			if known == "" {
				known = sshutil.DefaultKnownHosts()
			}
			backend = &shell.SSH{Config: sshutil.Config{
				Addr:       t.SSH.Addr,
				User:       t.SSH.User,
				Password:   t.SSH.Password,
				KeyPath:    t.SSH.KeyPath,
				KnownHosts: known,
			}}
		}
		return shell.New(shell.Config{
			Backend:     backend,
			InputDevice: t.InputDevice,
			AxisMaxX:    t.AxisMaxX,
			AxisMaxY:    t.AxisMaxY,
			Log:         l,
		}), nil
	case config.KindWSBridge:
		if t.WSBridge.URL == "" {
			return nil, fmt.Errorf("transport wsbridge: no url configured")
		}
		return wsbridge.New(wsbridge.Config{URL: t.WSBridge.URL, Token: t.WSBridge.Token, Log: l}), nil
	case config.KindSerial:
		if t.Serial.Port == "" {
			return nil, fmt.Errorf("transport serial: no port configured")
		}
		return serialtouch.New(serialtouch.Config{Port: t.Serial.Port, BaudRate: t.Serial.Baud, Log: l}), nil
	}
	return nil, fmt.Errorf("%w %q", config.ErrUnknownTransport, t.Kind)
}
