package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"podscribe/internal/feed"
	"podscribe/internal/utils"
)

// episodePageSize is the number of episodes returned by the listing.
const episodePageSize = 10

type feedRequest struct {
	RSSURL string `json:"rss_url" binding:"required"`
}

// listEpisodes handles POST /api/v1/episodes
func (h *Handler) listEpisodes(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "rss_url is required")
		return
	}

	f, err := h.feeds.Fetch(c.Request.Context(), req.RSSURL)
	if err != nil {
		log.Printf("[Feed] Error reading %s: %v", req.RSSURL, err)
		switch {
		case errors.Is(err, feed.ErrNoEpisodes), errors.Is(err, feed.ErrNoAudio):
			utils.Error(c, http.StatusUnprocessableEntity, errors.Cause(err).Error())
		default:
			utils.Error(c, http.StatusBadGateway, "error parsing RSS feed: "+err.Error())
		}
		return
	}

	shown := f.Episodes
	if len(shown) > episodePageSize {
		shown = shown[:episodePageSize]
	}
	items := make([]gin.H, 0, len(shown))
	for _, ep := range shown {
		items = append(items, gin.H{
			"index":       ep.Index,
			"title":       ep.Title,
			"published":   ep.Published,
			"audio_url":   ep.AudioURL,
			"description": ep.Summary(feed.DescriptionLimit),
		})
	}

	utils.Success(c, gin.H{
		"feed_title": f.Title,
		"episodes":   items,
		"total":      len(f.Episodes),
		"has_more":   len(f.Episodes) > episodePageSize,
	})
}
