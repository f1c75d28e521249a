//go:build linux

package bluez

import (
	"strconv"

	"github.com/godbus/dbus/v5"
)

// The methods below implement org.mpris.MediaPlayer2.Player. Each
// successful call invokes the command callback with (command, detail),
// per §4.4.1.

func (p *Player) Play() *dbus.Error {
	p.invoke("play", "")
	return nil
}

func (p *Player) Pause() *dbus.Error {
	p.invoke("pause", "")
	return nil
}

func (p *Player) PlayPause() *dbus.Error {
	p.invoke("playpause", "")
	return nil
}

func (p *Player) Stop() *dbus.Error {
	p.invoke("stop", "")
	return nil
}

func (p *Player) Next() *dbus.Error {
	p.invoke("next", "")
	return nil
}

func (p *Player) Previous() *dbus.Error {
	p.invoke("previous", "")
	return nil
}

func (p *Player) Seek(offset int64) *dbus.Error {
	p.invoke("seek", strconv.FormatInt(offset, 10))
	return nil
}

func (p *Player) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	p.invoke("set-position", strconv.FormatInt(position, 10))
	return nil
}

func (p *Player) OpenUri(uri string) *dbus.Error {
	p.invoke("open-uri", uri)
	return nil
}

func (p *Player) invoke(command, detail string) {
	if p.callback != nil {
		p.callback(command, detail)
	}
}
