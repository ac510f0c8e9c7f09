package handler

import (
	"bytes"
	"cmp"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/service"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type heatmapGoal struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Count    int    `json:"count,omitempty"`
}

type heatmapDay struct {
	Date  string        `json:"date"`
	Total int           `json:"total"`
	Goals []heatmapGoal `json:"goals"`
}

type heatmapRangePayload struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type heatmapSummary struct {
	TotalCheckIns int `json:"total_checkins"`
	ActiveDays    int `json:"active_days"`
	GoalCount     int `json:"goal_count"`
}

type heatmapPayload struct {
	Range       heatmapRangePayload `json:"range"`
	Days        []heatmapDay        `json:"days"`
	Goals       []heatmapGoal       `json:"goals"`
	Summary     heatmapSummary      `json:"summary"`
	GeneratedAt string              `json:"generated_at,omitempty"`
}

// GetHeatmap 返回过去一年所有目标的打卡热力图
func (a *API) GetHeatmap(c *gin.Context) {
	now := time.Now().In(time.Local)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := end.AddDate(0, 0, -364)

	entries, err := a.checkIns.HeatmapRange(start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取热力图数据失败")
		return
	}

	c.JSON(http.StatusOK, buildHeatmapPayload(entries, start, end, now))
}

// GetHeatmapImage 把过去一年的热力图渲染成可分享的 PNG 卡片
func (a *API) GetHeatmapImage(c *gin.Context) {
	now := time.Now().In(time.Local)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := end.AddDate(0, 0, -364)

	entries, err := a.checkIns.HeatmapRange(start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取热力图数据失败")
		return
	}

	img := renderHeatmapCard(entries, start, end)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		respondError(c, http.StatusInternalServerError, "渲染热力图失败")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func buildHeatmapPayload(entries []service.GoalHeatmapEntry, start, end, generatedAt time.Time) heatmapPayload {
	dayMap := make(map[string][]heatmapGoal)
	legendMap := make(map[uint]heatmapGoal)
	totalCheckIns := 0

	for _, entry := range entries {
		goal := heatmapGoal{ID: entry.GoalID, Title: entry.GoalTitle, Category: entry.Category, Count: entry.Count}
		key := entry.LogDate.Format(dateFormat)
		dayMap[key] = append(dayMap[key], goal)
		totalCheckIns += entry.Count
		if _, exists := legendMap[goal.ID]; !exists {
			legendMap[goal.ID] = heatmapGoal{ID: goal.ID, Title: goal.Title, Category: goal.Category}
		}
	}

	days := make([]heatmapDay, 0, len(dayMap))
	for date, goals := range dayMap {
		slices.SortFunc(goals, func(a, b heatmapGoal) int {
			return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
		total := 0
		for _, goal := range goals {
			total += goal.Count
		}
		days = append(days, heatmapDay{Date: date, Total: total, Goals: goals})
	}

	slices.SortFunc(days, func(a, b heatmapDay) int {
		return cmp.Compare(a.Date, b.Date)
	})

	legend := make([]heatmapGoal, 0, len(legendMap))
	for _, item := range legendMap {
		legend = append(legend, item)
	}
	slices.SortFunc(legend, func(a, b heatmapGoal) int {
		if diff := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); diff != 0 {
			return diff
		}
		return cmp.Compare(a.ID, b.ID)
	})

	payload := heatmapPayload{
		Range: heatmapRangePayload{
			Start: start.Format(dateFormat),
			End:   end.Format(dateFormat),
		},
		Days:    days,
		Goals:   legend,
		Summary: heatmapSummary{TotalCheckIns: totalCheckIns, ActiveDays: len(dayMap), GoalCount: len(legend)},
	}

	if !generatedAt.IsZero() {
		payload.GeneratedAt = generatedAt.Format(time.RFC3339)
	}

	return payload
}

// 热力图卡片的绘制参数。格子按周排列，周一在第一行，
// 先按逻辑尺寸绘制再放大一倍导出。
const (
	heatmapCellSize  = 10
	heatmapCellGap   = 2
	heatmapMargin    = 16
	heatmapHeaderH   = 24
	heatmapCardScale = 2
)

var (
	heatmapBackground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	heatmapEmptyCell  = color.RGBA{R: 0xeb, G: 0xed, B: 0xf0, A: 0xff}
	heatmapTextColor  = color.RGBA{R: 0x24, G: 0x29, B: 0x2f, A: 0xff}
	heatmapLevels     = []color.RGBA{
		{R: 0x9b, G: 0xe9, B: 0xa8, A: 0xff},
		{R: 0x40, G: 0xc4, B: 0x63, A: 0xff},
		{R: 0x30, G: 0xa1, B: 0x4e, A: 0xff},
		{R: 0x21, G: 0x6e, B: 0x39, A: 0xff},
	}
)

func renderHeatmapCard(entries []service.GoalHeatmapEntry, start, end time.Time) image.Image {
	totals := make(map[string]int)
	maxTotal := 0
	for _, entry := range entries {
		key := entry.LogDate.Format(dateFormat)
		totals[key] += entry.Count
		if totals[key] > maxTotal {
			maxTotal = totals[key]
		}
	}

	// 网格从 start 所在周的周一开始对齐
	offset := (int(start.Weekday()) + 6) % 7
	gridStart := start.AddDate(0, 0, -offset)
	totalDays := int(end.Sub(gridStart).Hours()/24) + 1
	weeks := (totalDays + 6) / 7

	width := heatmapMargin*2 + weeks*heatmapCellSize + (weeks-1)*heatmapCellGap
	height := heatmapMargin*2 + heatmapHeaderH + 7*heatmapCellSize + 6*heatmapCellGap

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	fillRect(canvas, canvas.Bounds(), heatmapBackground)

	title := "StrideLog " + start.Format(dateFormat) + " - " + end.Format(dateFormat)
	drawHeatmapLabel(canvas, heatmapMargin, heatmapMargin+13, title)

	for day := gridStart; !day.After(end); day = day.AddDate(0, 0, 1) {
		col := int(day.Sub(gridStart).Hours()/24) / 7
		row := (int(day.Weekday()) + 6) % 7

		x := heatmapMargin + col*(heatmapCellSize+heatmapCellGap)
		y := heatmapMargin + heatmapHeaderH + row*(heatmapCellSize+heatmapCellGap)
		cell := image.Rect(x, y, x+heatmapCellSize, y+heatmapCellSize)

		if day.Before(start) {
			fillRect(canvas, cell, heatmapBackground)
			continue
		}
		fillRect(canvas, cell, heatmapCellColor(totals[day.Format(dateFormat)], maxTotal))
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width*heatmapCardScale, height*heatmapCardScale))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), canvas, canvas.Bounds(), xdraw.Over, nil)
	return scaled
}

func heatmapCellColor(total, maxTotal int) color.RGBA {
	if total <= 0 || maxTotal <= 0 {
		return heatmapEmptyCell
	}
	level := total * len(heatmapLevels) / maxTotal
	if total*len(heatmapLevels)%maxTotal != 0 {
		level++
	}
	if level < 1 {
		level = 1
	}
	if level > len(heatmapLevels) {
		level = len(heatmapLevels)
	}
	return heatmapLevels[level-1]
}

func fillRect(canvas *image.RGBA, rect image.Rectangle, fill color.RGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			canvas.SetRGBA(x, y, fill)
		}
	}
}

func drawHeatmapLabel(canvas *image.RGBA, x, y int, text string) {
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(heatmapTextColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
