package paas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Presale Service

Ingests native payments sent to the presale destination account and serves
contribution totals, leaderboards and allocation snapshots.

## Access via PaaS

Base path (through gateway):
- /api/v1/services/presale/

## Auth

Read routes are public and cacheable for 60s at the edge.
Ingest, snapshot, sync-state, run and switch routes require the ingest secret, sent as
X-Presale-Secret, ?secret= or an HS256 bearer token signed with it.

## Routes

- GET /healthz
- GET /readyz
- GET /metrics
- GET /swagger/index.html
- GET /api/presale/leaderboard?top=&mode=&pages=
- GET /api/presale/raised?address=
- GET /api/presale/summary
- GET /api/presale/recent?limit=
- GET /api/presale/tx/:hash
- POST /api/presale/ingest
- POST /api/presale/snapshot
- GET /api/presale/sync-state
- GET /api/presale/ingest/runs?limit=
- GET /api/presale/settings/switches
- PUT /api/presale/settings/switches/:name
- GET /api/claim/preview?address=
- POST /api/claim/eligibility
`)
	})
}
