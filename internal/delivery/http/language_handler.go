package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/judge"
)

// LanguageHandler lists the languages the judge accepts.
type LanguageHandler struct{}

func NewLanguageHandler() *LanguageHandler {
	return &LanguageHandler{}
}

// List handles GET /api/v1/languages. ?synthesizable=true restricts the list
// to languages that function-style submissions can target.
func (h *LanguageHandler) List(c *gin.Context) {
	langs := judge.Languages()

	if raw := c.Query("synthesizable"); raw != "" {
		only, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "synthesizable must be a boolean"})
			return
		}
		filtered := make([]domain.LanguageInfo, 0, len(langs))
		for _, l := range langs {
			if l.Synthesizable == only {
				filtered = append(filtered, l)
			}
		}
		langs = filtered
	}

	c.JSON(http.StatusOK, gin.H{"languages": langs})
}
