package sqlclient

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// Canned statements for the remote store's care and task tables. Built with
// goqu so the literals are interpolated and escaped for us; the execution
// endpoint takes raw SQL only.

var dialect = goqu.Dialect("postgres")

// CompleteCareItemSQL marks a remote care item completed
func CompleteCareItemSQL(id, by, result string) (string, error) {
	sql, _, err := dialect.Update("care_items").
		Set(goqu.Record{
			"status":         "completed",
			"completed_date": time.Now().UTC(),
			"completed_by":   by,
			"result":         result,
		}).
		Where(goqu.Ex{"id": id, "status": "pending"}).
		ToSQL()
	return sql, err
}

// SkipCareItemSQL marks a remote care item skipped
func SkipCareItemSQL(id, by, reason string) (string, error) {
	sql, _, err := dialect.Update("care_items").
		Set(goqu.Record{
			"status":         "skipped",
			"completed_date": time.Now().UTC(),
			"completed_by":   by,
			"result":         reason,
		}).
		Where(goqu.Ex{"id": id, "status": "pending"}).
		ToSQL()
	return sql, err
}

// AssignTaskSQL assigns a remote task to a staff member
func AssignTaskSQL(id, assignee string) (string, error) {
	sql, _, err := dialect.Update("tasks").
		Set(goqu.Record{"assigned_to": assignee}).
		Where(goqu.Ex{
			"id":     id,
			"status": []string{"pending", "in_progress"},
		}).
		ToSQL()
	return sql, err
}

// TodayCareItemsSQL lists remote care items scheduled for a date, carrying
// overdue pending items along
func TodayCareItemsSQL(date time.Time) (string, error) {
	day := date.Format("2006-01-02")
	sql, _, err := dialect.From("care_items").
		Where(goqu.Or(
			goqu.Ex{"scheduled_date": day},
			goqu.And(
				goqu.C("scheduled_date").Lt(day),
				goqu.C("status").Eq("pending"),
			),
		)).
		Order(goqu.C("scheduled_date").Asc(), goqu.C("created_at").Asc()).
		ToSQL()
	return sql, err
}

// TodayTasksSQL lists remote tasks due on a date plus unfinished overdue ones
func TodayTasksSQL(date time.Time) (string, error) {
	day := date.Format("2006-01-02")
	sql, _, err := dialect.From("tasks").
		Where(goqu.Or(
			goqu.Ex{"due_date": day},
			goqu.And(
				goqu.C("due_date").Lt(day),
				goqu.C("status").In("pending", "in_progress"),
			),
		)).
		Order(goqu.C("due_date").Asc(), goqu.C("created_at").Asc()).
		ToSQL()
	return sql, err
}

// CompleteCareItem marks a remote care item completed. Returns false when the
// item was no longer pending and the transition did not apply.
func (c *Client) CompleteCareItem(ctx context.Context, id, by, result string) (bool, error) {
	sql, err := CompleteCareItemSQL(id, by, result)
	if err != nil {
		return false, err
	}
	n, err := c.Execute(ctx, sql)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SkipCareItem marks a remote care item skipped. Returns false when the item
// was no longer pending.
func (c *Client) SkipCareItem(ctx context.Context, id, by, reason string) (bool, error) {
	sql, err := SkipCareItemSQL(id, by, reason)
	if err != nil {
		return false, err
	}
	n, err := c.Execute(ctx, sql)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AssignTask assigns a remote task to a staff member. Returns false when the
// task was already terminal.
func (c *Client) AssignTask(ctx context.Context, id, assignee string) (bool, error) {
	sql, err := AssignTaskSQL(id, assignee)
	if err != nil {
		return false, err
	}
	n, err := c.Execute(ctx, sql)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateCareItem inserts a remote care item and returns its id
func (c *Client) CreateCareItem(ctx context.Context, patientID int64, careType, title, description string, scheduledDate time.Time, triggerType, triggerSource string) (string, error) {
	sql, err := InsertCareItemSQL(patientID, careType, title, description, scheduledDate, triggerType, triggerSource)
	if err != nil {
		return "", err
	}
	return c.Insert(ctx, sql)
}

// InsertCareItemSQL inserts a remote care item
func InsertCareItemSQL(patientID int64, careType, title, description string, scheduledDate time.Time, triggerType, triggerSource string) (string, error) {
	sql, _, err := dialect.Insert("care_items").
		Rows(goqu.Record{
			"patient_id":     patientID,
			"care_type":      careType,
			"title":          title,
			"description":    description,
			"status":         "pending",
			"scheduled_date": scheduledDate.Format("2006-01-02"),
			"trigger_type":   triggerType,
			"trigger_source": triggerSource,
		}).
		ToSQL()
	return sql, err
}
