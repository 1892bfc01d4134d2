package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/report"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
)

const (
	orderingParam   = "ordering"
	pageParam       = "page"
	perPageParam    = "per_page"
	totalCountHdr   = "X-Total-Count"
	dateLayout      = "2006-01-02"
	errInvalidDate  = "invalid date, use RFC3339 or YYYY-MM-DD"
	errInvalidBool  = "invalid boolean"
	errInvalidPrice = "invalid price"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPage reads `page` & `per_page`, falling back to the configured defaults; per_page is capped.
func bindPage(ctx echo.Context, conf core.PaginationConfig) core.Page {
	page, _ := strconv.Atoi(ctx.QueryParam(pageParam))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(ctx.QueryParam(perPageParam))
	if perPage < 1 {
		perPage = conf.DefaultPerPage
	}
	if conf.MaxPerPage > 0 && perPage > conf.MaxPerPage {
		perPage = conf.MaxPerPage
	}
	return core.Page{Page: page, PerPage: perPage}
}

// parseTime accepts RFC3339 timestamps and plain dates. A plain `to` date covers the whole day.
func parseTime(field, val string, endOfDay bool) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, core.NewFieldError(field, errInvalidDate)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return t, nil
}

func parseTimeRange(from, to string) (time.Time, time.Time, error) {
	f, err := parseTime("created_from", from, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := parseTime("created_to", to, true)
	return f, t, err
}

func parseBool(field, val string) (*bool, error) {
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewFieldError(field, errInvalidBool)
	}
	return &b, nil
}

type userQuery struct {
	Search      string   `query:"search"`
	Roles       []string `query:"role"`
	IsActive    string   `query:"is_active"`
	ManagerID   string   `query:"manager_id"`
	SpvID       string   `query:"spv_id"`
	CreatedFrom string   `query:"created_from"`
	CreatedTo   string   `query:"created_to"`
}

func (q userQuery) filter() (*user.QueryFilter, error) {
	isActive, err := parseBool("is_active", q.IsActive)
	if err != nil {
		return nil, err
	}
	from, to, err := parseTimeRange(q.CreatedFrom, q.CreatedTo)
	if err != nil {
		return nil, err
	}
	f := &user.QueryFilter{
		Search:      q.Search,
		Roles:       q.Roles,
		IsActive:    isActive,
		ManagerID:   q.ManagerID,
		SpvID:       q.SpvID,
		CreatedFrom: from,
		CreatedTo:   to,
	}
	f.Clean()
	return f, nil
}

type leadQuery struct {
	Search      string   `query:"search"`
	Priorities  []string `query:"priority"`
	Source      string   `query:"source"`
	ProjectID   string   `query:"project_id"`
	AssignedTo  string   `query:"assigned_to"`
	Unassigned  string   `query:"unassigned"`
	CreatedFrom string   `query:"created_from"`
	CreatedTo   string   `query:"created_to"`
}

func (q leadQuery) filter() (*lead.QueryFilter, error) {
	unassigned, err := parseBool("unassigned", q.Unassigned)
	if err != nil {
		return nil, err
	}
	from, to, err := parseTimeRange(q.CreatedFrom, q.CreatedTo)
	if err != nil {
		return nil, err
	}
	f := &lead.QueryFilter{
		Search:      q.Search,
		Priorities:  q.Priorities,
		Source:      q.Source,
		ProjectID:   q.ProjectID,
		AssignedTo:  q.AssignedTo,
		Unassigned:  unassigned != nil && *unassigned,
		CreatedFrom: from,
		CreatedTo:   to,
	}
	f.Clean()
	return f, nil
}

type reportQuery struct {
	ProjectID string `query:"project_id"`
	Source    string `query:"source"`
	From      string `query:"created_from"`
	To        string `query:"created_to"`
}

func (q reportQuery) filter() (report.Filter, error) {
	from, to, err := parseTimeRange(q.From, q.To)
	if err != nil {
		return report.Filter{}, err
	}
	return report.Filter{ProjectID: q.ProjectID, Source: q.Source, CreatedFrom: from, CreatedTo: to}, nil
}

type projectQuery struct {
	Search   string `query:"search"`
	IsActive string `query:"is_active"`
}

func (q projectQuery) filter() (*project.QueryFilter, error) {
	isActive, err := parseBool("is_active", q.IsActive)
	if err != nil {
		return nil, err
	}
	return &project.QueryFilter{Search: core.CleanString(q.Search), IsActive: isActive}, nil
}

type unitQuery struct {
	ProjectID string   `query:"project_id"`
	Statuses  []string `query:"status"`
	UnitType  string   `query:"unit_type"`
	MinPrice  string   `query:"min_price"`
	MaxPrice  string   `query:"max_price"`
	Search    string   `query:"search"`
}

func (q unitQuery) filter() (*project.UnitFilter, error) {
	f := &project.UnitFilter{
		ProjectID: core.CleanString(q.ProjectID),
		Statuses:  q.Statuses,
		UnitType:  core.CleanString(q.UnitType),
		Search:    core.CleanString(q.Search),
	}
	var err error
	if f.MinPrice, err = parsePrice("min_price", q.MinPrice); err != nil {
		return nil, err
	}
	if f.MaxPrice, err = parsePrice("max_price", q.MaxPrice); err != nil {
		return nil, err
	}
	return f, nil
}

func parsePrice(field, val string) (int64, error) {
	if val == "" {
		return 0, nil
	}
	p, err := strconv.ParseInt(val, 10, 64)
	if err != nil || p < 0 {
		return 0, core.NewFieldError(field, errInvalidPrice)
	}
	return p, nil
}

// bindQuery binds the query string to one of the *Query structs above.
func bindQuery(ctx echo.Context, q interface{}) error {
	if err := (&echo.DefaultBinder{}).Bind(q, ctx); err != nil {
		return errors.Wrap(err, "binding query")
	}
	return nil
}
