package controllers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"greenexchange/services"
	"greenexchange/utils"

	"go.uber.org/zap"
)

// CertificateController streams plantation certificates
type CertificateController struct {
	base
	trees *services.TreeService
}

// NewCertificateController creates a new CertificateController
func NewCertificateController(trees *services.TreeService, logger *zap.Logger, timeout time.Duration) *CertificateController {
	return &CertificateController{
		base:  base{logger: logger, timeout: timeout},
		trees: trees,
	}
}

// Download renders the certificate of a tree as a PDF attachment
func (cc *CertificateController) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := treeID(w, r)
	if !ok {
		return
	}

	ctx, cancel := cc.dbContext(r)
	defer cancel()
	tree, err := cc.trees.Get(ctx, id)
	if err != nil {
		cc.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := utils.RenderCertificate(&buf, tree); err != nil {
		cc.logger.Error("certificate render failed", zap.String("tree_id", id.Hex()), zap.Error(err))
		http.Error(w, "Error generating certificate", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+utils.CertificateFilename(tree))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		cc.logger.Warn("certificate write interrupted", zap.String("tree_id", id.Hex()), zap.Error(err))
	}
}
