package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/law-makers/cmhistory/pkg/models"
)

const upsertOrderSQL = `
INSERT INTO orders (
    order_id, source, type, other_username, other_location, timeline,
    timeline_alert_status, timeline_alert_message, timeline_alert_date, timeline_alert_time,
    summary_article_count, summary_item_value, summary_shipping_price, summary_trustee_service, summary_total_price,
    other_address, user_address, shipping_method, shipping_tracking, refund_totals,
    created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(order_id) DO UPDATE SET
    source = excluded.source,
    type = excluded.type,
    other_username = excluded.other_username,
    other_location = excluded.other_location,
    timeline = excluded.timeline,
    timeline_alert_status = excluded.timeline_alert_status,
    timeline_alert_message = excluded.timeline_alert_message,
    timeline_alert_date = excluded.timeline_alert_date,
    timeline_alert_time = excluded.timeline_alert_time,
    summary_article_count = excluded.summary_article_count,
    summary_item_value = excluded.summary_item_value,
    summary_shipping_price = excluded.summary_shipping_price,
    summary_trustee_service = excluded.summary_trustee_service,
    summary_total_price = excluded.summary_total_price,
    other_address = excluded.other_address,
    user_address = excluded.user_address,
    shipping_method = excluded.shipping_method,
    shipping_tracking = excluded.shipping_tracking,
    refund_totals = excluded.refund_totals,
    updated_at = excluded.updated_at`

const insertArticleSQL = `
INSERT INTO articles (
    order_id, name, amount, link, expansion_name, collector_number,
    condition, language, price_each, row_total, comment
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectOrderColumns = `
SELECT order_id, source, type, other_username, other_location, timeline,
       timeline_alert_status, timeline_alert_message, timeline_alert_date, timeline_alert_time,
       summary_article_count, summary_item_value, summary_shipping_price, summary_trustee_service, summary_total_price,
       other_address, user_address, shipping_method, shipping_tracking, refund_totals
FROM orders`

const selectArticleColumns = `
SELECT order_id, name, amount, link, expansion_name, collector_number,
       condition, language, price_each, row_total, comment
FROM articles`

// UpsertOrder stores o, replacing every field of an existing row with the
// same identifier and all of its article lines. Creation time is kept.
func (s *Store) UpsertOrder(ctx context.Context, o *models.Order) error {
	if o == nil || strings.TrimSpace(o.OrderID) == "" {
		return ErrMissingID
	}
	args, err := orderArgs(o, s.now().UnixMilli())
	if err != nil {
		return persistence("encode order "+o.OrderID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence("begin order upsert", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertOrderSQL, args...); err != nil {
		return persistence("upsert order "+o.OrderID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE order_id = ?`, o.OrderID); err != nil {
		return persistence("clear articles of "+o.OrderID, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertArticleSQL)
	if err != nil {
		return persistence("prepare article insert", err)
	}
	defer stmt.Close()
	for _, a := range o.Articles {
		_, err := stmt.ExecContext(ctx,
			o.OrderID, a.Name, nullInt(a.Amount), nullString(a.Link), nullString(a.ExpansionName),
			nullString(a.CollectorNumber), nullString(a.Condition), nullString(a.Language),
			nullFloat(a.PriceEach), nullFloat(a.RowTotalDisplayed), nullString(a.Comment),
		)
		if err != nil {
			return persistence("insert article of "+o.OrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence("commit order "+o.OrderID, err)
	}
	return nil
}

func orderArgs(o *models.Order, now int64) ([]any, error) {
	timeline, err := encodeTimeline(o.Timeline)
	if err != nil {
		return nil, err
	}
	otherAddr, err := encodeAddress(o.OtherUserAddress)
	if err != nil {
		return nil, err
	}
	userAddr, err := encodeAddress(o.UserAddress)
	if err != nil {
		return nil, err
	}

	var alertStatus, alertMessage, alertDate, alertTime sql.NullString
	if a := o.TimelineAlert; a != nil {
		if a.Status != models.AlertNone {
			alertStatus = sql.NullString{String: string(a.Status), Valid: true}
		}
		if a.Message != "" {
			alertMessage = sql.NullString{String: a.Message, Valid: true}
		}
		alertDate, alertTime = nullString(a.Date), nullString(a.Time)
	}

	var sum models.Summary
	if o.Summary != nil {
		sum = *o.Summary
	}

	var method, tracking, refunds sql.NullString
	if sh := o.Shipping; sh != nil {
		method, tracking = nullString(sh.ShippingMethod), nullString(sh.TrackingCode)
		if refunds, err = encodeRefunds(sh.RefundTotals); err != nil {
			return nil, err
		}
	}

	return []any{
		o.OrderID, o.Source, string(o.Type),
		nullString(o.OtherUser.Username), nullString(o.OtherUser.Location), timeline,
		alertStatus, alertMessage, alertDate, alertTime,
		nullInt(sum.ArticleCount), nullFloat(sum.ItemValue), nullFloat(sum.ShippingPrice),
		nullFloat(sum.TrusteeService), nullFloat(sum.TotalPrice),
		otherAddr, userAddr, method, tracking, refunds,
		now, now,
	}, nil
}

// HasOrder reports whether an order with id is stored.
func (s *Store) HasOrder(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE order_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, persistence("look up order "+id, err)
	}
	return true, nil
}

// GetOrder loads one order with its article lines.
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence("begin read", err)
	}
	defer tx.Rollback()

	o, err := scanOrder(tx.QueryRowContext(ctx, selectOrderColumns+` WHERE order_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("read order "+id, err)
	}

	rows, err := tx.QueryContext(ctx, selectArticleColumns+` WHERE order_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, persistence("read articles of "+id, err)
	}
	defer rows.Close()
	for rows.Next() {
		_, line, err := scanArticle(rows)
		if err != nil {
			return nil, persistence("scan article of "+id, err)
		}
		o.Articles = append(o.Articles, line)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("read articles of "+id, err)
	}
	return o, nil
}

// ListOrders returns every stored order keyed by identifier.
func (s *Store) ListOrders(ctx context.Context) (map[string]*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence("begin read", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, selectOrderColumns+` ORDER BY created_at, order_id`)
	if err != nil {
		return nil, persistence("list orders", err)
	}
	out := map[string]*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, persistence("scan order", err)
		}
		out[o.OrderID] = o
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, persistence("list orders", err)
	}

	arows, err := tx.QueryContext(ctx, selectArticleColumns+` ORDER BY id`)
	if err != nil {
		return nil, persistence("list articles", err)
	}
	defer arows.Close()
	for arows.Next() {
		orderID, line, err := scanArticle(arows)
		if err != nil {
			return nil, persistence("scan article", err)
		}
		if o, ok := out[orderID]; ok {
			o.Articles = append(o.Articles, line)
		}
	}
	if err := arows.Err(); err != nil {
		return nil, persistence("list articles", err)
	}
	return out, nil
}

// RemoveOrder deletes an order and, by cascade, its article lines.
// It reports whether a row existed.
func (s *Store) RemoveOrder(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = ?`, id)
	if err != nil {
		return false, persistence("remove order "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistence("remove order "+id, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		o                                   models.Order
		orderType                           string
		username, location, timeline        sql.NullString
		alertStatus, alertMsg               sql.NullString
		alertDate, alertTime                sql.NullString
		articleCount                        sql.NullInt64
		itemValue, shipping, trustee, total sql.NullFloat64
		otherAddr, userAddr                 sql.NullString
		method, tracking, refunds           sql.NullString
	)
	err := row.Scan(
		&o.OrderID, &o.Source, &orderType, &username, &location, &timeline,
		&alertStatus, &alertMsg, &alertDate, &alertTime,
		&articleCount, &itemValue, &shipping, &trustee, &total,
		&otherAddr, &userAddr, &method, &tracking, &refunds,
	)
	if err != nil {
		return nil, err
	}

	o.Type = models.OrderType(orderType)
	o.OtherUser = models.Counterparty{Username: stringPtr(username), Location: stringPtr(location)}
	o.Timeline = decodeTimeline(timeline)
	o.TimelineAlert = rebuildAlert(alertStatus, alertMsg, alertDate, alertTime)
	if articleCount.Valid || itemValue.Valid || shipping.Valid || trustee.Valid || total.Valid {
		o.Summary = &models.Summary{
			ArticleCount:   intPtr(articleCount),
			ItemValue:      floatPtr(itemValue),
			ShippingPrice:  floatPtr(shipping),
			TrusteeService: floatPtr(trustee),
			TotalPrice:     floatPtr(total),
		}
	}
	o.OtherUserAddress = decodeAddress(otherAddr)
	o.UserAddress = decodeAddress(userAddr)
	if r := decodeRefunds(refunds); method.Valid || tracking.Valid || r != nil {
		o.Shipping = &models.Shipping{
			ShippingMethod: stringPtr(method),
			TrackingCode:   stringPtr(tracking),
			RefundTotals:   r,
		}
	}
	o.Articles = []models.ArticleLine{}
	return &o, nil
}

// rebuildAlert restores a timeline alert, giving status-only rows a default message.
func rebuildAlert(status, message, date, clock sql.NullString) *models.TimelineAlert {
	var st models.AlertStatus
	switch v := models.AlertStatus(status.String); v {
	case models.AlertCancelled, models.AlertNotArrived:
		st = v
	}
	msg := message.String
	if !message.Valid {
		switch st {
		case models.AlertCancelled:
			msg = "Order cancelled"
		case models.AlertNotArrived:
			msg = "Not arrived"
		}
	}
	if st == models.AlertNone && msg == "" {
		return nil
	}
	return &models.TimelineAlert{
		Status:  st,
		Message: msg,
		Date:    stringPtr(date),
		Time:    stringPtr(clock),
	}
}

func scanArticle(row scanner) (string, models.ArticleLine, error) {
	var (
		orderID                             string
		a                                   models.ArticleLine
		amount                              sql.NullInt64
		link, expansion, number, cond, lang sql.NullString
		comment                             sql.NullString
		price, rowTotal                     sql.NullFloat64
	)
	err := row.Scan(&orderID, &a.Name, &amount, &link, &expansion, &number, &cond, &lang, &price, &rowTotal, &comment)
	if err != nil {
		return "", a, err
	}
	a.Amount = intPtr(amount)
	a.Link = stringPtr(link)
	a.ExpansionName = stringPtr(expansion)
	a.CollectorNumber = stringPtr(number)
	a.Condition = stringPtr(cond)
	a.Language = stringPtr(lang)
	a.PriceEach = floatPtr(price)
	a.RowTotalDisplayed = floatPtr(rowTotal)
	a.Comment = stringPtr(comment)
	return orderID, a, nil
}
