package devserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type handlers struct {
	store *Store
	auth  *Auth
	log   zerolog.Logger
	now   func() time.Time
}

// bindAndValidate binds the JSON body and runs validator tags. It writes the
// error response and returns false when the request is unusable.
func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Detail: "invalid JSON: " + err.Error()})
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apiError{Detail: err.Error()})
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apiError{Detail: "validation failed", Fields: fields})
		return false
	}
	return true
}

// fail writes business-rule refusals and hands anything else to ErrorHandler.
func fail(c *gin.Context, err error) {
	var re *RuleError
	if errors.As(err, &re) {
		c.JSON(re.Status, apiError{Detail: re.Detail})
		return
	}
	_ = c.Error(err)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiError{Detail: "invalid id"})
		return 0, false
	}
	return id, true
}

// tenant returns the caller's tenant, refusing payloads stamped for another.
func tenant(c *gin.Context, payloadTenant int64) (int64, bool) {
	claims := claimsFrom(c)
	if payloadTenant != 0 && payloadTenant != claims.TenantID {
		c.JSON(http.StatusForbidden, apiError{Detail: "tenant mismatch"})
		return 0, false
	}
	return claims.TenantID, true
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) login(c *gin.Context) {
	var req LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.auth.Login(c.Request.Context(), h.store, req)
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info().Str("tenant", req.TenantCode).Str("email", req.Email).Msg("login")
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) listBooks(c *gin.Context) {
	books, err := h.store.ListBooks(c.Request.Context(), claimsFrom(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *handlers) createBook(c *gin.Context) {
	var b Book
	if !bindAndValidate(c, &b) {
		return
	}
	tid, ok := tenant(c, b.TenantID)
	if !ok {
		return
	}
	b.ID = 0
	id, err := h.store.CreateBook(c.Request.Context(), tid, b)
	if err != nil {
		fail(c, err)
		return
	}
	b.ID, b.TenantID = id, tid
	c.JSON(http.StatusCreated, b)
}

func (h *handlers) updateBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var b Book
	if !bindAndValidate(c, &b) {
		return
	}
	tid, ok := tenant(c, b.TenantID)
	if !ok {
		return
	}
	b.ID, b.TenantID = id, tid
	if err := h.store.UpdateBook(c.Request.Context(), tid, b); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handlers) deleteBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteBook(c.Request.Context(), claimsFrom(c).TenantID, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listCopies(c *gin.Context) {
	copies, err := h.store.ListCopies(c.Request.Context(), claimsFrom(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, copies)
}

func (h *handlers) createCopy(c *gin.Context) {
	var cp Copy
	if !bindAndValidate(c, &cp) {
		return
	}
	tid, ok := tenant(c, cp.TenantID)
	if !ok {
		return
	}
	cp.ID = 0
	id, err := h.store.CreateCopy(c.Request.Context(), tid, cp)
	if err != nil {
		fail(c, err)
		return
	}
	cp.ID, cp.TenantID, cp.Status = id, tid, copyAvailable
	c.JSON(http.StatusCreated, cp)
}

func (h *handlers) deleteCopy(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteCopy(c.Request.Context(), claimsFrom(c).TenantID, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listMembers(c *gin.Context) {
	members, err := h.store.ListMembers(c.Request.Context(), claimsFrom(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *handlers) createMember(c *gin.Context) {
	var m Member
	if !bindAndValidate(c, &m) {
		return
	}
	tid, ok := tenant(c, m.TenantID)
	if !ok {
		return
	}
	m.ID = 0
	id, err := h.store.CreateMember(c.Request.Context(), tid, m)
	if err != nil {
		fail(c, err)
		return
	}
	m.ID, m.TenantID = id, tid
	c.JSON(http.StatusCreated, m)
}

func (h *handlers) updateMember(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var m Member
	if !bindAndValidate(c, &m) {
		return
	}
	tid, ok := tenant(c, m.TenantID)
	if !ok {
		return
	}
	m.ID, m.TenantID = id, tid
	if err := h.store.UpdateMember(c.Request.Context(), tid, m); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *handlers) deleteMember(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteMember(c.Request.Context(), claimsFrom(c).TenantID, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listLoans(c *gin.Context) {
	loans, err := h.store.ListLoans(c.Request.Context(), claimsFrom(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (h *handlers) createLoan(c *gin.Context) {
	var in LoanInput
	if !bindAndValidate(c, &in) {
		return
	}
	tid, ok := tenant(c, in.TenantID)
	if !ok {
		return
	}
	in.ID = 0
	claims := claimsFrom(c)
	id, err := h.store.CreateLoan(c.Request.Context(), tid, claims.UserID, in, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info().Int64("loan_id", id).Int64("copy_id", in.CopyID).Int64("member_id", in.MemberID).Msg("loan created")
	c.JSON(http.StatusCreated, gin.H{"prestamoId": id})
}

// returnLoan accepts the bare loan id as the JSON body.
func (h *handlers) returnLoan(c *gin.Context) {
	var id int64
	if err := c.ShouldBindJSON(&id); err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiError{Detail: "body must be the loan id"})
		return
	}
	if err := h.store.ReturnLoan(c.Request.Context(), claimsFrom(c).TenantID, id, h.now()); err != nil {
		fail(c, err)
		return
	}
	h.log.Info().Int64("loan_id", id).Msg("loan returned")
	c.JSON(http.StatusOK, gin.H{"prestamoId": id, "estado": loanReturned})
}

func (h *handlers) dashboard(c *gin.Context) {
	d, err := h.store.Dashboard(c.Request.Context(), claimsFrom(c).TenantID, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
