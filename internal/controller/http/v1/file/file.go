package file

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	mediaDir string
}

func NewController(mediaDir string) *Controller {
	return &Controller{mediaDir}
}

// File serves stored media such as decline evidence. Directories are never
// listed and paths cannot climb out of the media dir.
func (cf Controller) File(c *gin.Context) {
	file := path.Clean("/" + c.Param("filepath"))
	if file == "/" || strings.Contains(file, "..") {
		c.JSON(http.StatusNotFound, map[string]any{
			"error":  "file not found",
			"status": false,
		})
		return
	}

	full := filepath.Join(cf.mediaDir, filepath.FromSlash(file))

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, map[string]any{
			"error":  "file not found",
			"status": false,
		})
		return
	}

	http.ServeFile(c.Writer, c.Request, full)
}
