// Package httpapi is the gin transport adapter over the service layer.
// Handlers translate; all business rules live in the services.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/attendance"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/auth"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/config"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/enroll"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/manualcode"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/metrics"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/queue"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/scan"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/store"
)

// Handler wires the service layer to HTTP.
type Handler struct {
	cfg       config.App
	store     *store.Store
	redis     *store.Redis
	queue     queue.Queue
	enroller  *enroll.Service
	manager   *attendance.Manager
	recorder  *attendance.Recorder
	codes     *manualcode.Service
	processor *scan.Processor
}

// New creates the handler set.
func New(cfg config.App, st *store.Store, rdb *store.Redis, q queue.Queue,
	enroller *enroll.Service, manager *attendance.Manager, recorder *attendance.Recorder,
	codes *manualcode.Service, processor *scan.Processor) *Handler {
	return &Handler{
		cfg: cfg, store: st, redis: rdb, queue: q,
		enroller: enroller, manager: manager, recorder: recorder,
		codes: codes, processor: processor,
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	redisHealthy := h.redis.Healthy(c.Request.Context())
	dbHealthy := h.store.Ping(c.Request.Context()) == nil
	status := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
}

// ---------- Auth ----------

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name"`
	Role   string `json:"role" binding:"required,oneof=student teacher"`
}

// IssueToken upserts the identity row and signs a token pair. Identity is
// trusted input here; hardening is out of scope.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := model.Role(req.Role)
	if err := h.store.UpsertUser(c.Request.Context(), model.User{ID: req.UserID, Name: req.Name, Role: role}); err != nil {
		h.fail(c, err)
		return
	}
	tokens, err := auth.Issue(req.UserID, role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- Subjects ----------

type subjectRequest struct {
	Name                 string   `json:"name" binding:"required"`
	Code                 string   `json:"code" binding:"required"`
	ScheduleDays         []string `json:"schedule_days"`
	StartTime            string   `json:"start_time"`
	EndTime              string   `json:"end_time"`
	LateThresholdMinutes int      `json:"late_threshold_minutes"`
}

func (h *Handler) CreateSubject(c *gin.Context) {
	var req subjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.LateThresholdMinutes <= 0 {
		req.LateThresholdMinutes = model.DefaultLateThresholdMinutes
	}
	sub := &model.Subject{
		Name:                 req.Name,
		Code:                 req.Code,
		TeacherID:            auth.FromContext(c).Subject,
		ScheduleDays:         req.ScheduleDays,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		LateThresholdMinutes: req.LateThresholdMinutes,
	}
	if err := h.store.CreateSubject(c.Request.Context(), sub); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "subject code already in use"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) ListSubjects(c *gin.Context) {
	claims := auth.FromContext(c)
	var (
		subs []model.Subject
		err  error
	)
	if claims.Role == model.RoleTeacher {
		subs, err = h.store.ListSubjectsByTeacher(c.Request.Context(), claims.Subject)
	} else {
		subs, err = h.store.ListSubjectsByStudent(c.Request.Context(), claims.Subject)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if subs == nil {
		subs = []model.Subject{}
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subs})
}

func (h *Handler) DeleteSubject(c *gin.Context) {
	if err := h.store.DeleteSubject(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubjectPayloads serves the QR payload strings the code-issuance UI renders.
func (h *Handler) SubjectPayloads(c *gin.Context) {
	ctx := c.Request.Context()
	sub, err := h.store.GetSubject(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "subject not found"})
		return
	}
	resp := gin.H{"enroll": scan.EnrollPayload(*sub)}
	if sess, err := h.manager.Active(ctx, sub.ID); err != nil {
		h.fail(c, err)
		return
	} else if sess != nil {
		resp["check_in"] = scan.CheckInPayload(*sub, sess.Date)
		resp["check_out"] = scan.CheckOutPayload(*sub, sess.Date)
		resp["session_id"] = sess.ID
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Unenroll(c *gin.Context) {
	if err := h.enroller.Unenroll(c.Request.Context(), c.Param("studentID"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Sessions ----------

type startSessionRequest struct {
	Date string `json:"date"` // 2006-01-02, defaults to today
	Time string `json:"time"` // 15:04:05, defaults to now
}

func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	// Body is optional; an empty body means "start now".
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at, err := sessionInstant(req.Date, req.Time)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.manager.Start(c.Request.Context(), c.Param("id"), at)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.SessionsStarted.Inc()
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) ActiveSession(c *gin.Context) {
	sess, err := h.manager.Active(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) StopSession(c *gin.Context) {
	summary, err := h.manager.Stop(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.SessionsStopped.Inc()
	h.publish(queue.Event{Type: queue.EventSessionStopped, SessionID: summary.SessionID, At: time.Now()})
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListRecords(c *gin.Context) {
	records, err := h.recorder.Records(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []model.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

type overrideRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) OverrideRecord(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.recorder.Override(c.Request.Context(), c.Param("id"), c.Param("studentID"), model.RecordStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// SessionReport serves the worker-materialized report for stopped sessions,
// falling back to the live tally while the session runs.
func (h *Handler) SessionReport(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	if blob, err := h.redis.GetReport(ctx, sessionID); err == nil && blob != nil {
		var report json.RawMessage = blob
		c.JSON(http.StatusOK, gin.H{"finalized": true, "report": report})
		return
	}
	tally, err := h.redis.LiveTally(ctx, sessionID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report cache unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"finalized": false, "live": tally})
}

// ---------- Scans and manual codes ----------

type scanRequest struct {
	Payload string `json:"payload" binding:"required"`
}

func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	studentID := auth.FromContext(c).Subject
	outcome, err := h.processor.Process(c.Request.Context(), studentID, req.Payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.ScansTotal.WithLabelValues(outcome.Type, boolLabel(outcome.Success)).Inc()
	if outcome.Record != nil {
		h.publish(queue.Event{
			Type: queue.EventScan, SessionID: outcome.Record.SessionID,
			StudentID: studentID, Status: string(outcome.Record.Status), At: time.Now(),
		})
	}
	c.JSON(http.StatusOK, outcome)
}

type issueCodeRequest struct {
	Type string `json:"type" binding:"required,oneof=in out"`
}

func (h *Handler) IssueCode(c *gin.Context) {
	var req issueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mc, err := h.codes.Issue(c.Request.Context(), c.Param("id"), model.CodeType(req.Type))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, mc)
}

func (h *Handler) IssueCodeBatch(c *gin.Context) {
	var req issueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	codes, err := h.codes.IssueBatch(c.Request.Context(), c.Param("id"), model.CodeType(req.Type))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"codes": codes, "count": len(codes)})
}

type redeemRequest struct {
	Code string `json:"code" binding:"required"`
}

// RedeemCode consumes a manual code and reports the same structured outcome
// shape the scan endpoint uses. Business conflicts still count as a consumed
// code.
func (h *Handler) RedeemCode(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	studentID := auth.FromContext(c).Subject
	rec, err := h.codes.Redeem(c.Request.Context(), req.Code, studentID)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindNotFound, apperr.KindForbidden, apperr.KindConflict:
			metrics.CodesRedeemed.WithLabelValues(apperr.ReasonOf(err)).Inc()
			c.JSON(http.StatusOK, scan.Outcome{Type: scan.OutcomeAttendance, Message: errMessage(err)})
			return
		}
		h.fail(c, err)
		return
	}
	metrics.CodesRedeemed.WithLabelValues("ok").Inc()
	h.publish(queue.Event{
		Type: queue.EventScan, SessionID: rec.SessionID,
		StudentID: studentID, Status: string(rec.Status), At: time.Now(),
	})
	c.JSON(http.StatusOK, scan.Outcome{Type: scan.OutcomeAttendance, Message: "code accepted", Success: true, Record: rec})
}

// ---------- helpers ----------

func (h *Handler) publish(evt queue.Event) {
	if err := h.queue.Publish(context.Background(), evt); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

// fail maps the error taxonomy onto HTTP statuses. Transient store errors are
// surfaced as 503 with their cause logged, never as an anonymous 500.
func (h *Handler) fail(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindFormat:
		c.JSON(http.StatusBadRequest, gin.H{"error": errMessage(err), "reason": apperr.ReasonOf(err)})
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": errMessage(err), "reason": apperr.ReasonOf(err)})
	case apperr.KindForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": errMessage(err), "reason": apperr.ReasonOf(err)})
	case apperr.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": errMessage(err), "reason": apperr.ReasonOf(err)})
	case apperr.KindTransient:
		log.Printf("transient store error: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store temporarily unavailable", "retryable": true})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func errMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// sessionInstant combines optional date and time-of-day strings, defaulting
// missing parts to now.
func sessionInstant(date, tod string) (time.Time, error) {
	now := time.Now()
	if date == "" && tod == "" {
		return now, nil
	}
	d := now
	if date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, now.Location())
		if err != nil {
			return time.Time{}, err
		}
		d = parsed
	}
	t := now
	if tod != "" {
		parsed, err := time.Parse("15:04:05", tod)
		if err != nil {
			return time.Time{}, err
		}
		t = parsed
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location()), nil
}
