package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"greenexchange/services"
	"greenexchange/utils"

	"go.uber.org/zap"
)

// TreeController handles marketplace listings and their lifecycle
type TreeController struct {
	base
	trees          *services.TreeService
	uploadDir      string
	maxUploadBytes int64
}

// NewTreeController creates a new TreeController
func NewTreeController(trees *services.TreeService, renderer Renderer, logger *zap.Logger, uploadDir string, maxUploadBytes int64, timeout time.Duration) *TreeController {
	return &TreeController{
		base:           base{renderer: renderer, logger: logger, timeout: timeout},
		trees:          trees,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
	}
}

// Index lists every tree
func (tc *TreeController) Index(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := tc.dbContext(r)
	defer cancel()

	trees, err := tc.trees.List(ctx)
	if err != nil {
		tc.fail(w, r, err)
		return
	}
	tc.render(w, r, "trees/index", trees)
}

// New renders the planting form
func (tc *TreeController) New(w http.ResponseWriter, r *http.Request) {
	tc.render(w, r, "trees/new", nil)
}

// Create plants a tree from a multipart form with an optional image
func (tc *TreeController) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, tc.maxUploadBytes)
	if err := r.ParseMultipartForm(10 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	input, err := parsePlantForm(r)
	if err != nil {
		tc.fail(w, r, err)
		return
	}

	imageRef, err := tc.saveImage(r)
	if err != nil {
		tc.fail(w, r, err)
		return
	}

	ctx, cancel := tc.dbContext(r)
	defer cancel()
	tree, err := tc.trees.Plant(ctx, userID, input, imageRef)
	if err != nil {
		if rmErr := utils.RemoveUpload(tc.uploadDir, imageRef); rmErr != nil {
			tc.logger.Warn("orphaned upload", zap.String("image", imageRef), zap.Error(rmErr))
		}
		tc.fail(w, r, err)
		return
	}

	tc.logger.Debug("tree created", zap.String("tree_id", tree.ID.Hex()))
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (tc *TreeController) saveImage(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: could not read image", services.ErrInvalidInput)
	}
	defer file.Close()

	ref, err := utils.SaveUpload(tc.uploadDir, file, header, time.Now())
	if errors.Is(err, utils.ErrUnsupportedImage) {
		return "", fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	return ref, err
}

// Show renders one tree
func (tc *TreeController) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := treeID(w, r)
	if !ok {
		return
	}

	ctx, cancel := tc.dbContext(r)
	defer cancel()
	tree, err := tc.trees.Get(ctx, id)
	if err != nil {
		tc.fail(w, r, err)
		return
	}
	tc.render(w, r, "trees/show", tree)
}

// Buy purchases a Verified tree for the caller
func (tc *TreeController) Buy(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := treeID(w, r)
	if !ok {
		return
	}

	ctx, cancel := tc.dbContext(r)
	defer cancel()
	if _, err := tc.trees.Buy(ctx, id, userID); err != nil {
		tc.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// Resell puts a tree the caller holds back on the marketplace
func (tc *TreeController) Resell(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := treeID(w, r)
	if !ok {
		return
	}

	ctx, cancel := tc.dbContext(r)
	defer cancel()
	if _, err := tc.trees.Resell(ctx, id, userID); err != nil {
		tc.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
