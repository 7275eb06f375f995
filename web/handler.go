package web

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mileage/auth"
	dbt "mileage/db/db"
	"mileage/mq/mq"
	"mileage/report"
	"mileage/route"
	"mileage/service"
	"mileage/trip"
)

type handler struct {
	svc    *service.Service
	store  dbt.MileageDBWrapper
	events mq.MileageMessageQueueWrapper
	tokens *auth.TokenIssuer
	log    logrus.FieldLogger
}

type driverResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	Role           dbt.Role        `json:"role"`
	VehicleType    dbt.VehicleType `json:"vehicleType,omitempty"`
	FuelEfficiency float64         `json:"fuelEfficiency,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func toDriverResponse(d dbt.Driver) driverResponse {
	return driverResponse{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Role:           d.Role,
		VehicleType:    d.VehicleType,
		FuelEfficiency: d.FuelEfficiency,
		CreatedAt:      d.CreatedAt,
	}
}

type recordResponse struct {
	ID               uuid.UUID        `json:"id"`
	DriverID         uuid.UUID        `json:"driverId"`
	DriveDate        string           `json:"driveDate"`
	Departure        string           `json:"departure"`
	Destination      string           `json:"destination"`
	Waypoints        []string         `json:"waypoints"`
	Distance         float64          `json:"distance"`
	IsManualDistance bool             `json:"isManualDistance"`
	ClientName       string           `json:"clientName"`
	Status           dbt.RecordStatus `json:"status"`
	CreatedAt        time.Time        `json:"createdAt"`
}

func toRecordResponse(r dbt.Record) recordResponse {
	waypoints := r.Waypoints
	if waypoints == nil {
		waypoints = []string{}
	}
	return recordResponse{
		ID:               r.ID,
		DriverID:         r.DriverID,
		DriveDate:        r.DriveDate.Format(trip.DateLayout),
		Departure:        r.Departure,
		Destination:      r.Destination,
		Waypoints:        waypoints,
		Distance:         r.Distance,
		IsManualDistance: r.IsManualDistance,
		ClientName:       r.ClientName,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
	}
}

type submissionResponse struct {
	ID               uuid.UUID            `json:"id"`
	DriverID         uuid.UUID            `json:"driverId"`
	DriverName       string               `json:"driverName,omitempty"`
	Year             int                  `json:"year"`
	Month            int                  `json:"month"`
	Status           dbt.SubmissionStatus `json:"status"`
	SubmittedAt      time.Time            `json:"submittedAt"`
	CompletedAt      *time.Time           `json:"completedAt,omitempty"`
	CompletedBy      *uuid.UUID           `json:"completedBy,omitempty"`
	SettlementAmount *int64               `json:"settlementAmount,omitempty"`
	TotalDistance    *float64             `json:"totalDistance,omitempty"`
	FuelCost         *int64               `json:"fuelCost,omitempty"`
	DepreciationCost *int64               `json:"depreciationCost,omitempty"`
}

func toSubmissionResponse(s dbt.Submission) submissionResponse {
	return submissionResponse{
		ID:               s.ID,
		DriverID:         s.DriverID,
		Year:             s.Year,
		Month:            s.Month,
		Status:           s.Status,
		SubmittedAt:      s.SubmittedAt,
		CompletedAt:      s.CompletedAt,
		CompletedBy:      s.CompletedBy,
		SettlementAmount: s.SettlementAmount,
		TotalDistance:    s.TotalDistance,
		FuelCost:         s.FuelCost,
		DepreciationCost: s.DepreciationCost,
	}
}

type rateResponse struct {
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	GasolinePrice    float64   `json:"gasolinePrice"`
	DieselPrice      float64   `json:"dieselPrice"`
	LPGPrice         float64   `json:"lpgPrice"`
	ElectricPrice    float64   `json:"electricPrice"`
	DepreciationCost float64   `json:"depreciationCost"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toRateResponse(r dbt.RateEntry) rateResponse {
	return rateResponse(r)
}

// --- params ---

func paramPeriod(c *gin.Context) (int, int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		badRequest(c, "year must be a number")
		return 0, 0, false
	}
	month, err := strconv.Atoi(strings.TrimSuffix(c.Param("month"), ".xlsx"))
	if err != nil {
		badRequest(c, "month must be a number")
		return 0, 0, false
	}
	return year, month, true
}

func queryPeriod(c *gin.Context) (int, int, bool) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		badRequest(c, "query parameter year is required")
		return 0, 0, false
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		badRequest(c, "query parameter month is required")
		return 0, 0, false
	}
	return year, month, true
}

func paramID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// driverParam resolves an optional driver id, defaulting to the caller.
func driverParam(c *gin.Context, raw string) (uuid.UUID, bool) {
	if raw == "" {
		return actorOf(c).UserID, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "invalid driverId")
		return uuid.Nil, false
	}
	return id, true
}

// --- health & auth ---

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

type employeeLoginRequest struct {
	Name string `json:"name" binding:"required"`
	PIN  string `json:"pin" binding:"required"`
}

type adminLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string         `json:"token"`
	User  driverResponse `json:"user"`
}

func (h *handler) issue(c *gin.Context, d dbt.Driver) {
	token, err := h.tokens.Issue(auth.ActorOf(&d))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token, User: toDriverResponse(d)})
}

func (h *handler) loginEmployee(c *gin.Context) {
	var req employeeLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and pin are required")
		return
	}
	d, err := h.svc.LoginEmployee(c.Request.Context(), req.Name, req.PIN)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issue(c, d)
}

func (h *handler) loginAdmin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	d, err := h.svc.LoginAdmin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issue(c, d)
}

func (h *handler) me(c *gin.Context) {
	actor := actorOf(c)
	d, err := h.svc.GetDriver(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toDriverResponse(d))
}

// --- drivers ---

func (h *handler) listDrivers(c *gin.Context) {
	list, err := h.svc.ListDrivers(c.Request.Context(), actorOf(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ret := make([]driverResponse, 0, len(list))
	for _, d := range list {
		ret = append(ret, toDriverResponse(d))
	}
	c.JSON(http.StatusOK, ret)
}

func (h *handler) addDriver(c *gin.Context) {
	var in service.DriverInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid driver payload")
		return
	}
	d, err := h.svc.AddDriver(c.Request.Context(), actorOf(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDriverResponse(d))
}

func (h *handler) updateDriver(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in service.DriverInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid driver payload")
		return
	}
	d, err := h.svc.UpdateDriver(c.Request.Context(), actorOf(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toDriverResponse(d))
}

func (h *handler) deleteDriver(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteDriver(c.Request.Context(), actorOf(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- rates ---

func (h *handler) listRates(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		badRequest(c, "year must be a number")
		return
	}
	list, err := h.svc.ListRates(c.Request.Context(), actorOf(c), year)
	if err != nil {
		h.fail(c, err)
		return
	}
	ret := make([]rateResponse, 0, len(list))
	for _, r := range list {
		ret = append(ret, toRateResponse(r))
	}
	c.JSON(http.StatusOK, ret)
}

func (h *handler) getRates(c *gin.Context) {
	year, month, ok := paramPeriod(c)
	if !ok {
		return
	}
	r, err := h.svc.GetRates(c.Request.Context(), actorOf(c), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRateResponse(r))
}

func (h *handler) saveRates(c *gin.Context) {
	year, month, ok := paramPeriod(c)
	if !ok {
		return
	}
	var in service.RateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid rates payload")
		return
	}
	r, err := h.svc.SaveRates(c.Request.Context(), actorOf(c), year, month, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRateResponse(r))
}

// --- records ---

type recordRequest struct {
	DriverID         string       `json:"driverId"`
	DriveDate        string       `json:"driveDate"`
	Departure        string       `json:"departure"`
	Destination      string       `json:"destination"`
	Waypoints        []string     `json:"waypoints"`
	ClientName       string       `json:"clientName"`
	ComputedDistance float64      `json:"computedDistance"`
	Route            []route.Stop `json:"route"`
	RoundTrip        bool         `json:"roundTrip"`
	ManualDistance   string       `json:"manualDistance"`
}

func (h *handler) createRecord(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid record payload")
		return
	}
	driverID, ok := driverParam(c, req.DriverID)
	if !ok {
		return
	}
	in := service.RecordInput{
		DriverID:         driverID,
		Departure:        req.Departure,
		Destination:      req.Destination,
		Waypoints:        req.Waypoints,
		ClientName:       req.ClientName,
		ComputedDistance: req.ComputedDistance,
		Route:            req.Route,
		RoundTrip:        req.RoundTrip,
		ManualDistance:   req.ManualDistance,
	}
	if req.DriveDate != "" {
		d, err := trip.ParseDate(req.DriveDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		in.DriveDate = d
	}
	r, err := h.svc.CreateRecord(c.Request.Context(), actorOf(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRecordResponse(r))
}

func (h *handler) deleteRecord(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteRecord(c.Request.Context(), actorOf(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listRecords(c *gin.Context) {
	year, month, ok := queryPeriod(c)
	if !ok {
		return
	}
	driverID, ok := driverParam(c, c.Query("driverId"))
	if !ok {
		return
	}
	ctx := c.Request.Context()
	records, err := h.svc.ListRecords(ctx, actorOf(c), driverID, year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	summary, err := h.svc.MonthSummary(ctx, actorOf(c), driverID, year, month)
	if err != nil {
		h.fail(c, err)
		return
	}

	ret := make([]recordResponse, 0, len(records))
	for _, r := range records {
		ret = append(ret, toRecordResponse(r))
	}
	resp := gin.H{
		"records":       ret,
		"totalDistance": summary.TotalDistance,
		"draftCount":    summary.DraftCount,
	}
	if summary.Submission != nil {
		resp["submission"] = toSubmissionResponse(*summary.Submission)
	}
	c.JSON(http.StatusOK, resp)
}

// --- submissions ---

// withDriverNames batches the driver lookups of a listing through the
// request's data loader.
func (h *handler) withDriverNames(c *gin.Context, list []dbt.Submission) []submissionResponse {
	ret := make([]submissionResponse, 0, len(list))
	ids := make([]uuid.UUID, 0, len(list))
	for _, s := range list {
		ret = append(ret, toSubmissionResponse(s))
		ids = append(ids, s.DriverID)
	}
	loader, ok := driverLoaderOf(c)
	if !ok || len(ids) == 0 {
		return ret
	}
	drivers, err := loader.GetDriver.LoadAll(c.Request.Context(), ids)
	if err != nil {
		h.log.WithError(err).Debug("some drivers could not be loaded")
	}
	for i := range ret {
		if i < len(drivers) && drivers[i] != nil {
			ret[i].DriverName = drivers[i].Name
		}
	}
	return ret
}

func (h *handler) listSubmissions(c *gin.Context) {
	year, month, ok := queryPeriod(c)
	if !ok {
		return
	}
	list, err := h.svc.ListSubmissions(c.Request.Context(), actorOf(c), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.withDriverNames(c, list))
}

type submitRequest struct {
	DriverID string `json:"driverId"`
	Year     int    `json:"year" binding:"required"`
	Month    int    `json:"month" binding:"required"`
}

func (h *handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "year and month are required")
		return
	}
	driverID, ok := driverParam(c, req.DriverID)
	if !ok {
		return
	}
	s, err := h.svc.Submit(c.Request.Context(), actorOf(c), driverID, req.Year, req.Month)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSubmissionResponse(s))
}

func (h *handler) cancelSubmission(c *gin.Context) {
	year, month, ok := paramPeriod(c)
	if !ok {
		return
	}
	driverID, ok := driverParam(c, c.Query("driverId"))
	if !ok {
		return
	}
	if err := h.svc.CancelSubmission(c.Request.Context(), actorOf(c), driverID, year, month); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) complete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	s, err := h.svc.Complete(c.Request.Context(), actorOf(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSubmissionResponse(s))
}

func (h *handler) cancelCompletion(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	s, err := h.svc.CancelCompletion(c.Request.Context(), actorOf(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSubmissionResponse(s))
}

type bulkItemResponse struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	DriverID     uuid.UUID `json:"driverId"`
	Amount       int64     `json:"amount,omitempty"`
	Error        string    `json:"error,omitempty"`
	Code         string    `json:"code,omitempty"`
}

func (h *handler) bulkSettle(c *gin.Context) {
	year, month, ok := paramPeriod(c)
	if !ok {
		return
	}
	res, err := h.svc.BulkSettle(c.Request.Context(), actorOf(c), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]bulkItemResponse, 0, len(res.Items))
	for _, it := range res.Items {
		item := bulkItemResponse{SubmissionID: it.SubmissionID, DriverID: it.DriverID, Amount: it.Amount}
		if it.Err != nil {
			_, item.Code = statusOf(it.Err)
			item.Error = it.Err.Error()
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{
		"successCount": res.SuccessCount,
		"failCount":    res.FailCount,
		"items":        items,
	})
}

func (h *handler) closeMonth(c *gin.Context) {
	year, month, ok := paramPeriod(c)
	if !ok {
		return
	}
	n, err := h.svc.CloseMonth(c.Request.Context(), actorOf(c), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": n})
}

// --- reports ---

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handler) monthlyReport(c *gin.Context) {
	year, month, ok := paramPeriod(c)
	if !ok {
		return
	}
	m, err := h.svc.MonthlyReport(c.Request.Context(), actorOf(c), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteMonthlyWorkbook(&buf, m); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+report.Filename("mileage", year, month, "xlsx"))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *handler) statement(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	st, err := h.svc.Statement(c.Request.Context(), actorOf(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteStatement(&buf, st); err != nil {
		h.fail(c, err)
		return
	}
	name := report.Filename(st.Driver.Name, st.Submission.Year, st.Submission.Month, "pdf")
	c.Header("Content-Disposition", "attachment; filename="+name)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
