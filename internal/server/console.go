package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cyberkart/kiosk/internal/inventory"
)

const defaultBarcode = "000000000000"

// Console is the operator command loop on the server host: stock
// adjustments, price and location updates, and manual propagation.
type Console struct {
	store      *inventory.Store
	propagator *Propagator
	in         io.Reader
	out        io.Writer
}

// NewConsole wires the admin console.
func NewConsole(store *inventory.Store, propagator *Propagator, in io.Reader, out io.Writer) *Console {
	return &Console{store: store, propagator: propagator, in: in, out: out}
}

// Run reads commands until the input closes or the context is cancelled.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.in)
	c.printPrompt()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			c.printPrompt()
			continue
		}
		c.dispatch(fields)
		c.printPrompt()
	}
}

func (c *Console) printPrompt() {
	fmt.Fprint(c.out, "\nEnter command (show | add <item> <qty> [barcode] | subtract <item> <qty> | "+
		"set_price <item> <price> | set_location <item> <x> <y> | "+
		"propagate | propagate_selected <item1> [item2]... | pinned | help): ")
}

func (c *Console) dispatch(fields []string) {
	switch strings.ToLower(fields[0]) {
	case "show":
		c.show()
	case "pinned":
		c.showPinned()
	case "add":
		c.add(fields[1:])
	case "subtract":
		c.subtract(fields[1:])
	case "set_price":
		c.setPrice(fields[1:])
	case "set_location":
		c.setLocation(fields[1:])
	case "propagate":
		c.propagate(nil)
	case "propagate_selected":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "No items selected for propagation.")
			return
		}
		c.propagate(fields[1:])
	case "help":
		c.help()
	default:
		fmt.Fprintln(c.out, "Unknown command. Type 'help' for available commands.")
	}
}

func (c *Console) show() {
	fmt.Fprintln(c.out, strings.Repeat("=", 80))
	fmt.Fprintln(c.out, "CURRENT STOCK AND LOCATIONS")
	fmt.Fprintln(c.out, strings.Repeat("=", 80))
	for _, item := range c.store.Items() {
		fmt.Fprintf(c.out, "| %-15s | Qty: %3d | Price: $%8s | Barcode: %-12s | Location: (%.1f, %.1f) |\n",
			item.Name, item.Quantity, item.Price.StringFixed(2), item.Barcode, item.X, item.Y)
	}
	fmt.Fprintln(c.out, strings.Repeat("=", 80))
}

func (c *Console) showPinned() {
	pins := c.store.Pins()
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
	fmt.Fprintln(c.out, "PINNED ITEMS")
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
	if len(pins) == 0 {
		fmt.Fprintln(c.out, "No items currently pinned")
	}
	for _, pin := range pins {
		fmt.Fprintf(c.out, "%-15s | Location: (%.1f, %.1f) | By: %-10s | Time: %s\n",
			pin.ItemName, pin.X, pin.Y, pin.PinnedBy, pin.Timestamp.Format("15:04:05"))
	}
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
}

func (c *Console) add(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: add <item> <qty> [barcode]")
		return
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintln(c.out, "Invalid quantity.")
		return
	}
	barcode := defaultBarcode
	if len(args) >= 3 {
		barcode = args[2]
	}

	remaining, created := c.store.Add(args[0], qty, barcode)
	if created {
		fmt.Fprintf(c.out, "Created %d %s(s). Barcode: %s\n", qty, args[0], barcode)
	} else {
		fmt.Fprintf(c.out, "Added %d %s(s). New quantity: %d\n", qty, args[0], remaining)
	}
	c.propagate(nil)
}

func (c *Console) subtract(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: subtract <item> <qty>")
		return
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintln(c.out, "Invalid quantity.")
		return
	}

	remaining, err := c.store.Subtract(args[0], qty)
	if err != nil {
		fmt.Fprintf(c.out, "Cannot remove %d %s(s): %v (current quantity: %d)\n", qty, args[0], err, remaining)
		return
	}
	fmt.Fprintf(c.out, "Removed %d %s(s). New quantity: %d\n", qty, args[0], remaining)
	c.propagate(nil)
}

func (c *Console) setPrice(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: set_price <item> <price>")
		return
	}
	price, err := decimal.NewFromString(args[1])
	if err != nil {
		fmt.Fprintln(c.out, "Invalid price.")
		return
	}
	if err := c.store.SetPrice(args[0], price); err != nil {
		fmt.Fprintf(c.out, "Item %s not found.\n", args[0])
		return
	}
	fmt.Fprintf(c.out, "Set price for %s to $%s\n", args[0], price.String())
}

func (c *Console) setLocation(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(c.out, "Usage: set_location <item> <x> <y>")
		return
	}
	x, errX := strconv.ParseFloat(args[1], 64)
	y, errY := strconv.ParseFloat(args[2], 64)
	if errX != nil || errY != nil {
		fmt.Fprintln(c.out, "Invalid coordinates.")
		return
	}
	if err := c.store.SetLocation(args[0], x, y); err != nil {
		fmt.Fprintf(c.out, "Item %s not found.\n", args[0])
		return
	}
	fmt.Fprintf(c.out, "Set location for %s to (%.1f, %.1f)\n", args[0], x, y)
	c.propagate(nil)
}

func (c *Console) propagate(filter []string) {
	if err := c.propagator.PublishSnapshot(filter); err != nil {
		fmt.Fprintf(c.out, "Failed to propagate items: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "Items propagated successfully!")
}

func (c *Console) help() {
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
	fmt.Fprintln(c.out, "STOCK SERVER COMMANDS")
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
	fmt.Fprintln(c.out, "show                        - Display all items with locations")
	fmt.Fprintln(c.out, "pinned                      - Show pin request history")
	fmt.Fprintln(c.out, "add <item> <qty> [barcode]  - Add quantity or create new item")
	fmt.Fprintln(c.out, "subtract <item> <qty>       - Remove quantity from item")
	fmt.Fprintln(c.out, "set_price <item> <price>    - Set item price")
	fmt.Fprintln(c.out, "set_location <item> <x> <y> - Set item coordinates")
	fmt.Fprintln(c.out, "propagate                   - Manually broadcast current items")
	fmt.Fprintln(c.out, "propagate_selected <items>  - Broadcast only the named items")
	fmt.Fprintln(c.out, "help                        - Show this help message")
	fmt.Fprintln(c.out, "Items auto-propagate on: add, subtract, set_location")
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
}
