package request

import (
	"errors"
	"fmt"
	"net/http"

	commonDto "anoa.com/studentlms/pkg/dto"
	"github.com/gin-gonic/gin"
)

// PictureField is the multipart field carrying a profile picture.
const PictureField = "profile_picture"

// FormPicture opens the uploaded profile picture, if any. The returned close
// func is always safe to call.
func FormPicture(c *gin.Context) (*commonDto.UploadedFile, func(), error) {
	noop := func() {}

	fileHeader, err := c.FormFile(PictureField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, fmt.Errorf("failed to read profile picture: %w", err)
	}
	if fileHeader == nil || fileHeader.Size == 0 {
		return nil, noop, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open profile picture: %w", err)
	}

	return &commonDto.UploadedFile{
		Reader:   file,
		FileName: fileHeader.Filename,
	}, func() { file.Close() }, nil
}
