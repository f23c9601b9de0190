package helper_util

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func GetPaginationParams(c *gin.Context) (limit int, offset int, err error) {
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		return 0, 0, err
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// GetTimeRangeParams reads "from"/"to" RFC3339 query parameters, defaulting
// to the last 24 hours.
func GetTimeRangeParams(c *gin.Context) (from time.Time, to time.Time, err error) {
	now := time.Now().UTC()

	fromStr := c.DefaultQuery("from", now.Add(-24*time.Hour).Format(time.RFC3339))
	from, err = time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	toStr := c.DefaultQuery("to", now.Format(time.RFC3339))
	to, err = time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	return from, to, nil
}
