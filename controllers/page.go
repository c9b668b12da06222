package controllers

import (
	"net/http"
	"time"

	"greenexchange/services"

	"go.uber.org/zap"
)

// PageController serves the informational pages
type PageController struct {
	base
	trees *services.TreeService
}

// NewPageController creates a new PageController
func NewPageController(trees *services.TreeService, renderer Renderer, logger *zap.Logger, timeout time.Duration) *PageController {
	return &PageController{
		base:  base{renderer: renderer, logger: logger, timeout: timeout},
		trees: trees,
	}
}

func (pc *PageController) About(w http.ResponseWriter, r *http.Request) {
	pc.render(w, r, "page/about", nil)
}

func (pc *PageController) Team(w http.ResponseWriter, r *http.Request) {
	pc.render(w, r, "page/team", nil)
}

func (pc *PageController) FarmerSimulator(w http.ResponseWriter, r *http.Request) {
	pc.render(w, r, "page/farmer-simulator", nil)
}

// Stats shows marketplace totals
func (pc *PageController) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := pc.dbContext(r)
	defer cancel()

	stats, err := pc.trees.Stats(ctx)
	if err != nil {
		pc.fail(w, r, err)
		return
	}
	pc.render(w, r, "stats", stats)
}
