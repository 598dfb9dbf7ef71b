// Worker protocol handlers.
//
//   - GET  /jobs          (claimable work)
//   - POST /jobs/claim    (operator claim of an order batch)
//   - POST /jobs/report   (terminal outcome from a worker)
//
// Claim and report run behind the Idempotency middleware, so a retried
// request with the same Idempotency-Key replays the first 2xx response.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/http/middleware"
	"github.com/tbourn/autodesign-coordinator/internal/jobs"
)

// ClaimResponse is the POST /jobs/claim response body.
type ClaimResponse struct {
	Success bool          `json:"success" example:"true"`
	Order   *domain.Order `json:"order"`
}

// ListJobs godoc
// @ID          listJobs
// @Summary     List claimable work
// @Description Returns every GENERATING order batch and every SCANNING template as tagged job descriptors.
// @Tags        Jobs
// @Produce     json
// @Security    BearerAuth
// @Param       X-Agent-ID  header  string  false  "Worker identity"  example(mac-studio-1)
// @Success     200  {object}  jobs.List
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /jobs [get]
func (h *Handlers) ListJobs(c *gin.Context) {
	descs, err := h.jobSvc.ListClaimableWork(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if descs == nil {
		descs = []jobs.Descriptor{}
	}
	ok(c, http.StatusOK, jobs.List{Jobs: descs})
}

// ClaimJob godoc
// @ID          claimJob
// @Summary     Claim an order batch
// @Description Moves every AI_READY item of the order to GENERATING in one step.
// @Tags        Jobs
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string             false  "Replay protection key"
// @Param       body             body    jobs.ClaimRequest  true   "Order to claim"
// @Success     200  {object}  handlers.ClaimResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing order id"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Nothing to claim"
// @Router      /jobs/claim [post]
func (h *Handlers) ClaimJob(c *gin.Context) {
	var req jobs.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		failErr(c, err)
		return
	}

	o, err := h.jobSvc.Claim(c.Request.Context(), req.OrderID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ClaimResponse{Success: true, Order: o})
}

// ReportJob godoc
// @ID          reportJob
// @Summary     Report a job outcome
// @Description Applies a worker's success or failure for an ORDER_BATCH or TEMPLATE_SCAN job. Duplicate reports change nothing and still succeed.
// @Tags        Jobs
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string              false  "Replay protection key"
// @Param       body             body    jobs.ReportRequest  true   "Outcome"
// @Success     200  {object}  jobs.ReportResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad outcome or missing job id"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown order or template"
// @Router      /jobs/report [post]
func (h *Handlers) ReportJob(c *gin.Context) {
	var req jobs.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		failErr(c, err)
		return
	}

	changed, err := h.jobSvc.Report(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.LoggerFrom(c).Info().
		Str("agent_id", middleware.AgentIDFrom(c)).
		Str("job_id", req.JobID).
		Str("kind", string(req.Kind())).
		Str("outcome", string(req.Outcome)).
		Int64("changed", changed).
		Msg("job reported")
	ok(c, http.StatusOK, jobs.ReportResponse{Success: true, Changed: changed})
}
