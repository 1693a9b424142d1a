package controllers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/api/transport"
	"github.com/alex-pricope/campus-election-system/auth"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/gin-gonic/gin"
)

type AdminController struct {
	usersStorage     storage.UserStorage
	electionsStorage storage.ElectionStorage
	ballotsStorage   storage.BallotStorage
	tokens           *auth.TokenManager
	startedAt        time.Time
}

func NewAdminController(users storage.UserStorage, elections storage.ElectionStorage, ballots storage.BallotStorage, tokens *auth.TokenManager, startedAt time.Time) *AdminController {
	return &AdminController{
		usersStorage:     users,
		electionsStorage: elections,
		ballotsStorage:   ballots,
		tokens:           tokens,
		startedAt:        startedAt,
	}
}

func (c *AdminController) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/api/admin", transport.AuthMiddleware(c.tokens), transport.RequireRole(storage.RoleAdmin))

	group.GET("/stats", c.stats)
	group.GET("/db", c.dbStats)
}

// stats godoc
// @Summary System statistics
// @Description Account counts, active elections, ballots and process health
// @Tags admin
// @Security BearerToken
// @Produce json
// @Success 200 {object} models.AdminStatsResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/admin/stats [get]
func (c *AdminController) stats(g *gin.Context) {
	ctx := g.Request.Context()

	students, err := c.usersStorage.CountByRole(ctx, storage.RoleUser)
	if err != nil {
		writeError(g, err, "", "Failed to fetch system stats")
		return
	}
	officers, err := c.usersStorage.GetByRole(ctx, storage.RoleECOfficer)
	if err != nil {
		writeError(g, err, "", "Failed to fetch system stats")
		return
	}
	elections, err := c.electionsStorage.GetAll(ctx)
	if err != nil {
		writeError(g, err, "", "Failed to fetch system stats")
		return
	}
	votes, err := c.ballotsStorage.Count(ctx)
	if err != nil {
		writeError(g, err, "", "Failed to fetch system stats")
		return
	}

	docs := make([]models.ECOfficerSummary, 0, len(officers))
	for _, o := range officers {
		docs = append(docs, models.ECOfficerSummary{Name: o.Name, Username: o.Username})
	}
	active := 0
	for _, e := range elections {
		if e.Active {
			active++
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	logging.Log.Debugf("ADMIN: stats requested by %s", transport.UserID(g))
	g.JSON(http.StatusOK, &models.AdminStatsResponse{
		Users:           students,
		ECOfficers:      len(officers),
		ECOfficerDocs:   docs,
		ActiveElections: active,
		TotalVotes:      votes,
		Uptime:          time.Since(c.startedAt).Seconds(),
		Goroutines:      runtime.NumGoroutine(),
		Memory: models.MemoryStats{
			Alloc:      megabytes(mem.Alloc),
			TotalAlloc: megabytes(mem.TotalAlloc),
			Sys:        megabytes(mem.Sys),
			HeapInUse:  megabytes(mem.HeapInuse),
			NumGC:      mem.NumGC,
		},
	})
}

// dbStats godoc
// @Summary Stored record counts
// @Tags admin
// @Security BearerToken
// @Produce json
// @Success 200 {object} models.DBStatsResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/admin/db [get]
func (c *AdminController) dbStats(g *gin.Context) {
	ctx := g.Request.Context()

	students, err := c.usersStorage.CountByRole(ctx, storage.RoleUser)
	if err != nil {
		writeError(g, err, "", "Failed to fetch database stats")
		return
	}
	officers, err := c.usersStorage.CountByRole(ctx, storage.RoleECOfficer)
	if err != nil {
		writeError(g, err, "", "Failed to fetch database stats")
		return
	}
	votes, err := c.ballotsStorage.Count(ctx)
	if err != nil {
		writeError(g, err, "", "Failed to fetch database stats")
		return
	}

	g.JSON(http.StatusOK, &models.DBStatsResponse{Students: students, ECOfficers: officers, Votes: votes})
}

func megabytes(b uint64) string {
	return fmt.Sprintf("%.2f MB", float64(b)/1024/1024)
}
