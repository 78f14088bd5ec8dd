// Package viewer renders a running place with raylib. Each frame steps
// the scheduler once, then draws the parts under Workspace.
package viewer

import (
	"fmt"
	"time"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"blockengine/internal/classes"
	"blockengine/internal/config"
	"blockengine/internal/engine"
	"blockengine/internal/host"
)

var (
	colorBgDark  = rl.NewColor(20, 20, 30, 255)
	colorBgPanel = rl.NewColor(28, 28, 38, 235)
	colorBorder  = rl.NewColor(50, 50, 65, 255)
	colorText    = rl.NewColor(200, 200, 215, 255)
	colorMuted   = rl.NewColor(130, 130, 150, 255)
)

const (
	panelW   = int32(260)
	rowH     = int32(18)
	maxLines = 200
)

type Viewer struct {
	Host   *host.Host
	Config config.WindowConfig
	Camera *FlyCamera

	Paused       bool
	ShowExplorer bool

	stepMs float64
	drawMs float64
	scroll int32
}

func New(h *host.Host, cfg config.WindowConfig) *Viewer {
	return &Viewer{
		Host:         h,
		Config:       cfg,
		Camera:       NewFlyCamera(rl.Vector3{X: 20, Y: 15, Z: 20}),
		ShowExplorer: true,
	}
}

// Run opens the window and loops until it is closed.
func (v *Viewer) Run() {
	rl.SetConfigFlags(rl.FlagWindowHighdpi | rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(v.Config.Width, v.Config.Height, v.Config.Title)
	defer rl.CloseWindow()
	rl.SetTargetFPS(v.Config.TargetFPS)
	setStyle()

	for !rl.WindowShouldClose() {
		v.Update()
		v.Draw()
	}
}

func setStyle() {
	gui.SetStyle(gui.DEFAULT, gui.BACKGROUND_COLOR, gui.NewColorPropertyValue(colorBgDark))
	gui.SetStyle(gui.DEFAULT, gui.BASE_COLOR_NORMAL, gui.NewColorPropertyValue(colorBgPanel))
	gui.SetStyle(gui.DEFAULT, gui.TEXT_COLOR_NORMAL, gui.NewColorPropertyValue(colorText))
	gui.SetStyle(gui.DEFAULT, gui.BORDER_COLOR_NORMAL, gui.NewColorPropertyValue(colorBorder))
	gui.SetStyle(gui.DEFAULT, gui.TEXT_SIZE, 15)
}

func (v *Viewer) Update() {
	if rl.IsKeyPressed(rl.KeyP) {
		v.Paused = !v.Paused
	}
	if rl.IsKeyPressed(rl.KeyF1) {
		v.ShowExplorer = !v.ShowExplorer
	}

	start := time.Now()
	if !v.Paused {
		v.Host.Step()
	}
	v.stepMs = float64(time.Since(start).Microseconds()) / 1000.0

	v.Camera.Update(rl.GetFrameTime())
}

func (v *Viewer) lighting() *classes.Lighting {
	l, _ := engine.As[*classes.Lighting](classes.FindService(v.Host.DataModel, "Lighting"))
	return l
}

func (v *Viewer) Draw() {
	cam := v.Camera.Camera3D()
	aspect := float32(rl.GetScreenWidth()) / float32(max(rl.GetScreenHeight(), 1))
	all := Collect(v.Host.Workspace, v.lighting())
	drawables := Cull(ExtractFrustum(cam, aspect), all)

	rl.BeginDrawing()
	rl.ClearBackground(skyColor(v.lighting()))

	drawStart := time.Now()
	rl.BeginMode3D(cam)
	rl.DrawGrid(64, 4)
	for _, d := range drawables {
		d.Draw()
	}
	rl.EndMode3D()
	v.drawMs = float64(time.Since(drawStart).Microseconds()) / 1000.0

	v.drawUI(len(drawables), len(all))
	rl.EndDrawing()
}

func skyColor(l *classes.Lighting) rl.Color {
	if l == nil {
		return colorBgDark
	}
	day := max(0, l.SunDirection().Y)
	return rl.NewColor(uint8(20+100*day), uint8(20+140*day), uint8(30+190*day), 255)
}

func (v *Viewer) drawUI(drawn, parts int) {
	screenW := int32(rl.GetScreenWidth())
	screenH := int32(rl.GetScreenHeight())

	sched := v.Host.Runtime.Sched
	status := fmt.Sprintf("t=%.2fs  tasks=%d  parts=%d/%d  step %.2f ms  draw %.2f ms",
		sched.Clock().Now(), sched.Live(), drawn, parts, v.stepMs, v.drawMs)
	rl.DrawText(status, 10, screenH-24, 16, colorText)
	rl.DrawFPS(screenW-90, screenH-24)

	v.Paused = gui.CheckBox(rl.NewRectangle(10, 10, 18, 18), "Paused (P)", v.Paused)
	if v.Paused && gui.Button(rl.NewRectangle(120, 8, 70, 22), "Step") {
		v.Host.Step()
	}
	rl.DrawText("WASD/QE move, right mouse look, F1 explorer", 10, 36, 14, colorMuted)

	if v.ShowExplorer {
		v.drawExplorer(screenW, screenH)
	}
}

func (v *Viewer) drawExplorer(screenW, screenH int32) {
	x := screenW - panelW
	y := int32(0)
	h := screenH - 30

	rl.DrawRectangle(x, y, panelW, h, colorBgPanel)
	rl.DrawRectangle(x, y, 2, h, colorBorder)
	rl.DrawText("Explorer", x+12, y+8, 18, colorText)

	mouse := rl.GetMousePosition()
	if mouse.X >= float32(x) && mouse.Y < float32(h) {
		v.scroll -= int32(rl.GetMouseWheelMove() * 20)
	}
	lines := Explorer(v.Host.DataModel, maxLines)
	maxScroll := max(0, int32(len(lines))*rowH-(h-34))
	v.scroll = min(max(v.scroll, 0), maxScroll)

	rl.BeginScissorMode(x, y+32, panelW, h-32)
	for i, l := range lines {
		rowY := y + 34 + int32(i)*rowH - v.scroll
		col := colorText
		if l.Depth == 0 {
			col = colorMuted
		}
		rl.DrawText(l.Text, x+12+int32(l.Depth)*12, rowY, 14, col)
	}
	rl.EndScissorMode()
}
