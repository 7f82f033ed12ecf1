package controllers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yeremiapane/delivery-app/utils"
)

const maxUploadSize = 5 << 20

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

type UploadController struct {
	Dir string
}

func NewUploadController(dir string) *UploadController {
	return &UploadController{Dir: dir}
}

// Upload stores one image under a random name and returns its public path.
func (uc *UploadController) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize+1024)

	file, err := c.FormFile("file")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("file is required"))
		return
	}
	if file.Size > maxUploadSize {
		utils.RespondError(c, http.StatusRequestEntityTooLarge, errors.New("file must be 5MB or smaller"))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !imageExtensions[ext] {
		utils.RespondError(c, http.StatusBadRequest, errors.New("only jpg, png, gif and webp images are accepted"))
		return
	}

	if err := os.MkdirAll(uc.Dir, 0o755); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(uc.Dir, name)); err != nil {
		utils.ErrorLogger.WithError(err).Error("Error saving upload")
		utils.RespondError(c, http.StatusInternalServerError, errors.New("error saving image"))
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "File uploaded", gin.H{"path": "/uploads/" + name})
}
