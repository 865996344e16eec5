package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/history"
	"github.com/zulandar/motorlot/internal/ledger"
	"github.com/zulandar/motorlot/internal/reconcile"
	"github.com/zulandar/motorlot/internal/repaircase"
	"github.com/zulandar/motorlot/internal/vehicle"
	"gorm.io/gorm"
)

// registerRoutes sets up the read-only API on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, laborRate decimal.Decimal) {
	router.GET("/healthz", handleHealth(db))
	router.GET("/api/summary", handleSummary(db))

	router.GET("/api/parts", handlePartList(db))
	router.GET("/api/parts/:pn", handlePartDetail(db))

	router.GET("/api/vehicles", handleVehicleList(db))
	router.GET("/api/vehicles/:vin", handleVehicleDetail(db))
	router.GET("/api/vehicles/:vin/history", handleVehicleHistory(db))
	router.GET("/api/vehicles/:vin/timeline", handleVehicleTimeline(db))

	router.GET("/api/repairs/:id", handleRepairDetail(db))
	router.GET("/api/ledger/recent", handleRecentHistory(db))
	router.GET("/api/reconcile", handleReconcile(db, laborRate))
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleSummary(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := Summary(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func handlePartList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts, err := ledger.ListParts(db, ledger.ListFilters{
			Location:       c.Query("location"),
			Supplier:       c.Query("supplier"),
			IncludeRemoved: c.Query("include_removed") == "true",
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"parts": parts})
	}
}

func handlePartDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		pn := c.Param("pn")
		part, err := ledger.FindPart(db, pn)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ledger.ErrPartNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		entries, err := ledger.EntriesForPart(db, pn)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"part": part, "entries": entries})
	}
}

func handleVehicleList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicles, err := vehicle.List(db, vehicle.ListFilters{
			Status:       c.Query("status"),
			GarageStatus: c.Query("garage_status"),
			Brand:        c.Query("brand"),
			Archived:     c.Query("archived") == "true",
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
	}
}

func handleVehicleDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := vehicle.Get(db, c.Param("vin"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, vehicle.ErrVehicleNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func handleVehicleHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := history.QueryByVIN(db, c.Param("vin"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": entries})
	}
}

func handleVehicleTimeline(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := history.Timeline(db, c.Param("vin"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"timeline": events})
	}
}

func handleRepairDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, err := repaircase.Get(db, c.Param("id"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, repaircase.ErrCaseNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rc)
	}
}

func handleRecentHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		entries, err := history.QueryRecent(db, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": entries})
	}
}

func handleReconcile(db *gorm.DB, laborRate decimal.Decimal) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := reconcile.Run(db, laborRate)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"clean":     report.Empty(),
			"anomalies": report.Summaries(),
			"report":    report,
		})
	}
}
