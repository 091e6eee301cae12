package handlers

import (
	"net/http"
	"sort"
	"time"

	"food-ordering-api/apperr"
	"food-ordering-api/format"
	"food-ordering-api/models"
	"food-ordering-api/money"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
)

const dayLayout = "2006-01-02"

type RestaurantRevenue struct {
	RestaurantID uint         `json:"restaurantId"`
	Name         string       `json:"name"`
	Orders       int64        `json:"orders"`
	Revenue      money.Amount `json:"revenue"`
}

type DailyStats struct {
	Date    string       `json:"date"`
	Orders  int64        `json:"orders"`
	Revenue money.Amount `json:"revenue"`
}

type Analytics struct {
	From              string                       `json:"from"`
	To                string                       `json:"to"`
	TotalOrders       int64                        `json:"totalOrders"`
	ByStatus          map[models.OrderStatus]int64 `json:"byStatus"`
	Revenue           money.Amount                 `json:"revenue"`
	AverageOrderValue money.Amount                 `json:"averageOrderValue"`
	TopRestaurants    []RestaurantRevenue          `json:"topRestaurants"`
	Daily             []DailyStats                 `json:"daily"`
}

// analyticsRange reads ?from and ?to as local calendar days. Both ends are
// inclusive; the default is the last 30 days.
func (h *Handler) analyticsRange(c *gin.Context) (time.Time, time.Time, error) {
	loc := h.location()
	today := h.now()
	to := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	from := to.AddDate(0, 0, -29)
	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.ParseInLocation(dayLayout, v, loc); err != nil {
			return from, to, apperr.Validation("from must be YYYY-MM-DD")
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.ParseInLocation(dayLayout, v, loc); err != nil {
			return from, to, apperr.Validation("to must be YYYY-MM-DD")
		}
	}
	if to.Before(from) {
		return from, to, apperr.Validation("from must not be after to")
	}
	return from, to.AddDate(0, 0, 1), nil
}

func (h *Handler) ordersInRange(c *gin.Context, from, until time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := h.db(c).Preload("Restaurant").
		Where("created_at >= ? AND created_at < ?", from.UTC(), until.UTC()).
		Order("created_at").Find(&orders).Error
	return orders, err
}

// summarizeRange aggregates orders; revenue only counts delivered orders.
func (h *Handler) summarizeRange(orders []models.Order, from, until time.Time) Analytics {
	loc := h.location()
	a := Analytics{
		From:     from.Format(dayLayout),
		To:       until.AddDate(0, 0, -1).Format(dayLayout),
		ByStatus: make(map[models.OrderStatus]int64),
	}
	daily := make(map[string]*DailyStats)
	for d := from; d.Before(until); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		daily[key] = &DailyStats{Date: key}
		a.Daily = append(a.Daily, DailyStats{Date: key})
	}
	perRestaurant := make(map[uint]*RestaurantRevenue)
	var delivered int64

	for _, o := range orders {
		a.TotalOrders++
		a.ByStatus[o.Status]++
		day := daily[o.CreatedAt.In(loc).Format(dayLayout)]
		if day != nil {
			day.Orders++
		}
		if o.Status != models.StatusDelivered {
			continue
		}
		delivered++
		a.Revenue += o.TotalAmount
		if day != nil {
			day.Revenue += o.TotalAmount
		}
		rr := perRestaurant[o.RestaurantID]
		if rr == nil {
			rr = &RestaurantRevenue{RestaurantID: o.RestaurantID}
			if o.Restaurant != nil {
				rr.Name = o.Restaurant.Name
			}
			perRestaurant[o.RestaurantID] = rr
		}
		rr.Orders++
		rr.Revenue += o.TotalAmount
	}
	if delivered > 0 {
		a.AverageOrderValue = money.Amount(int64(a.Revenue) / delivered)
	}
	for i := range a.Daily {
		a.Daily[i] = *daily[a.Daily[i].Date]
	}

	a.TopRestaurants = make([]RestaurantRevenue, 0, len(perRestaurant))
	for _, rr := range perRestaurant {
		a.TopRestaurants = append(a.TopRestaurants, *rr)
	}
	sort.Slice(a.TopRestaurants, func(i, j int) bool {
		x, y := a.TopRestaurants[i], a.TopRestaurants[j]
		if x.Revenue != y.Revenue {
			return x.Revenue > y.Revenue
		}
		return x.RestaurantID < y.RestaurantID
	})
	if len(a.TopRestaurants) > 5 {
		a.TopRestaurants = a.TopRestaurants[:5]
	}
	return a
}

func (h *Handler) AdminAnalytics(c *gin.Context) {
	from, until, err := h.analyticsRange(c)
	if err != nil {
		fail(c, err)
		return
	}
	orders, err := h.ordersInRange(c, from, until)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.summarizeRange(orders, from, until))
}

// AdminExportAnalytics streams the orders in range as an xlsx workbook with
// an Orders sheet and a Daily sheet.
func (h *Handler) AdminExportAnalytics(c *gin.Context) {
	from, until, err := h.analyticsRange(c)
	if err != nil {
		fail(c, err)
		return
	}
	orders, err := h.ordersInRange(c, from, until)
	if err != nil {
		fail(c, err)
		return
	}
	summary := h.summarizeRange(orders, from, until)
	loc := h.location()

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		fail(c, err)
		return
	}
	header := sheet.AddRow()
	for _, title := range []string{
		"Order number", "Date", "Time", "Restaurant", "Status", "Payment",
		"Subtotal", "Delivery fee", "Discount", "VAT", "Total",
	} {
		header.AddCell().SetValue(title)
	}
	for _, o := range orders {
		row := sheet.AddRow()
		created := o.CreatedAt.In(loc)
		restaurant := ""
		if o.Restaurant != nil {
			restaurant = o.Restaurant.Name
		}
		row.AddCell().SetValue(o.OrderNumber)
		row.AddCell().SetValue(format.Date(created))
		row.AddCell().SetValue(format.Time(created))
		row.AddCell().SetValue(restaurant)
		row.AddCell().SetValue(string(o.Status))
		row.AddCell().SetValue(string(o.PaymentStatus))
		for _, amount := range []money.Amount{o.Subtotal, o.DeliveryFee, o.DiscountAmount, o.TaxAmount, o.TotalAmount} {
			row.AddCell().SetFloat(amount.Float64())
		}
	}

	days, err := file.AddSheet("Daily")
	if err != nil {
		fail(c, err)
		return
	}
	header = days.AddRow()
	header.AddCell().SetValue("Date")
	header.AddCell().SetValue("Orders")
	header.AddCell().SetValue("Revenue")
	for _, d := range summary.Daily {
		row := days.AddRow()
		row.AddCell().SetValue(d.Date)
		row.AddCell().SetInt64(d.Orders)
		row.AddCell().SetFloat(d.Revenue.Float64())
	}

	filename := "orders-" + summary.From + "-" + summary.To + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := file.Write(c.Writer); err != nil {
		fail(c, err)
	}
}
