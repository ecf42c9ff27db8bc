package notify

import (
	"fmt"
	"strings"
	"time"

	"zazoom-be/internal/order"
)

const trackingURL = "https://zazoom.delivery/track/"

// DriverRequest is the dispatch chat message for a freshly paid order. The
// reply commands are what the webhook understands.
func DriverRequest(o *order.Order) string {
	id := o.ID.String()

	var b strings.Builder
	b.WriteString("🚨 New Delivery Request 🚨\n\n")
	fmt.Fprintf(&b, "Order ID: %s\n", id)
	fmt.Fprintf(&b, "Amount: $%s\n", o.Amount.StringFixed(2))
	if len(o.Lines) > 0 {
		fmt.Fprintf(&b, "Items: %d\n", itemCount(o.Lines))
	}
	b.WriteString("\nStatus: Ready for Pickup 🚗\n\n")
	b.WriteString("Instructions:\n")
	fmt.Fprintf(&b, "1. Reply /accept_%s to claim this delivery\n", id)
	fmt.Fprintf(&b, "2. Reply /pickup_%s when picked up\n", id)
	fmt.Fprintf(&b, "3. Reply /delivered_%s when completed\n", id)
	b.WriteString("\nStay safe! 🌿")
	return b.String()
}

func itemCount(lines []order.Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// DeliveryUpdate is posted to the driver chat when a delivery moves.
func DeliveryUpdate(orderID, status, message string, at time.Time) string {
	var b strings.Builder
	b.WriteString("🔄 Delivery Update\n\n")
	fmt.Fprintf(&b, "Order ID: %s\n", orderID)
	fmt.Fprintf(&b, "Status: %s\n", status)
	if message != "" {
		b.WriteString(message + "\n")
	}
	fmt.Fprintf(&b, "\nTime: %s", at.Format(time.Kitchen))
	return b.String()
}

func OrderConfirmationSMS(orderID, amount string) string {
	return fmt.Sprintf("🌿 ZaZoom Order Confirmation\nOrder #%s\nAmount: $%s\nTrack your order at: %s%s",
		orderID, amount, trackingURL, orderID)
}

func OrderConfirmationDM(orderID, amount string) string {
	return fmt.Sprintf("🌿 Order #%s confirmed\nAmount: $%s\nTrack it here: %s%s", orderID, amount, trackingURL, orderID)
}

func OrderUpdateSMS(orderID, status string, at time.Time) string {
	return fmt.Sprintf("🚚 ZaZoom Delivery Update\nOrder #%s\nStatus: %s\nTime: %s",
		orderID, status, at.Format(time.RFC1123))
}

func DeliveryConfirmationSMS(orderID string) string {
	return fmt.Sprintf("✅ Your ZaZoom order #%s has been delivered!\nThank you for choosing ZaZoom Delivery.", orderID)
}

func OrderUpdateDM(orderID, status string, at time.Time) string {
	return fmt.Sprintf("🚚 Order Update #%s\nStatus: %s\nTime: %s", orderID, status, at.Format(time.RFC1123))
}

func DeliveryConfirmationDM(orderID string) string {
	return fmt.Sprintf("✅ Order #%s has been delivered!\nThank you for choosing ZaZoom Delivery.", orderID)
}
