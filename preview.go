package main

import (
	"fmt"
	"log/slog"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/Raimguzhinov/imgquant/internal/logging"
	"github.com/Raimguzhinov/imgquant/pixbuf"
)

// view is one preview window.
type view struct {
	win  *sdl.Window
	rend *sdl.Renderer
	tex  *sdl.Texture
}

func (v *view) destroy() {
	if v.tex != nil {
		v.tex.Destroy()
	}
	if v.rend != nil {
		v.rend.Destroy()
	}
	if v.win != nil {
		v.win.Destroy()
	}
	*v = view{}
}

// preview opens a source and a result window per job and blocks until one
// of them is closed.
func preview(jobs []*job, logger *slog.Logger) error {
	log := logging.WithComponent(logger, logging.ComponentPreview)
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("sdl init: %w", err)
	}
	defer sdl.Quit()

	var views []*view
	defer func() {
		for _, v := range views {
			v.destroy()
		}
	}()

	for i, j := range jobs {
		x, y := 100+i*40, 100+i*40
		orig, err := createView("Source: "+j.input, j.source, x, y)
		if err != nil {
			return err
		}
		views = append(views, orig)
		conv, err := createView(fmt.Sprintf("Result: %s (%d colors)", j.output, len(j.palette)), j.result, x+j.source.Width+20, y)
		if err != nil {
			return err
		}
		views = append(views, conv)
	}

	showLoop(views, log)
	return nil
}

func showLoop(views []*view, log *slog.Logger) {
	quitCh := make(chan struct{})
	closed := make(chan uint32, len(views))
	waitClose(quitCh, func(windowID uint32) { closed <- windowID })

	for {
		select {
		case <-quitCh:
			for {
				select {
				case id := <-closed:
					log.Debug("window closed", "id", id)
				default:
					log.Debug("leaving preview")
					return
				}
			}
		default:
			for _, v := range views {
				renderWindow(v)
			}
			sdl.Delay(16) // ~60 FPS
		}
	}
}

func renderWindow(v *view) {
	if v.win == nil || v.rend == nil || v.tex == nil {
		return
	}
	v.rend.SetDrawColor(0, 0, 0, 255)
	v.rend.Clear()
	v.rend.Copy(v.tex, nil, nil)
	v.rend.Present()
}

func createView(title string, img *pixbuf.Buffer, x, y int) (*view, error) {
	w, h := img.Width, img.Height
	v := &view{}

	var err error
	v.win, err = sdl.CreateWindow(title, int32(x), int32(y), int32(w), int32(h), sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, err
	}
	v.rend, err = sdl.CreateRenderer(v.win, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		v.destroy()
		return nil, err
	}
	v.tex, err = v.rend.CreateTexture(sdl.PIXELFORMAT_ABGR8888, sdl.TEXTUREACCESS_STREAMING, int32(w), int32(h))
	if err != nil {
		v.destroy()
		return nil, err
	}

	pixels, pitch, err := v.tex.Lock(nil)
	if err != nil {
		v.destroy()
		return nil, err
	}
	for row := 0; row < h; row++ {
		dst := pixels[row*pitch:]
		for col := 0; col < w; col++ {
			c, _ := img.RGB(col, row)
			dst[col*4+0] = c.R
			dst[col*4+1] = c.G
			dst[col*4+2] = c.B
			dst[col*4+3] = 255
		}
	}
	v.tex.Unlock()
	return v, nil
}

func waitClose(quitCh chan struct{}, closeWindowCb func(windowID uint32)) {
	go func() {
		for {
			select {
			case <-quitCh:
				return
			default:
				ev := sdl.PollEvent()
				if ev == nil {
					sdl.Delay(10)
					continue
				}
				switch e := ev.(type) {
				case *sdl.QuitEvent:
					close(quitCh)
					return
				case *sdl.WindowEvent:
					if e.Event == sdl.WINDOWEVENT_CLOSE {
						closeWindowCb(e.WindowID)
						close(quitCh)
						return
					}
				}
			}
		}
	}()
}
