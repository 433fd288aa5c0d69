package domain

import (
	"fmt"
	"strings"
)

// Category is the vehicle class. It selects both the hourly rate and the spot pool.
type Category string

const (
	CategoryCar  Category = "CAR"
	CategoryBike Category = "BIKE"
)

// Categories lists the supported categories in seed and menu order.
var Categories = []Category{CategoryCar, CategoryBike}

func (c Category) Valid() bool {
	return c == CategoryCar || c == CategoryBike
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts the category name in any case, surrounding spaces ignored.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// CategoryFromSelection maps the vehicle type menu (1 CAR, 2 BIKE).
func CategoryFromSelection(selection int) (Category, error) {
	switch selection {
	case 1:
		return CategoryCar, nil
	case 2:
		return CategoryBike, nil
	}
	return "", fmt.Errorf("%w: menu selection %d", ErrUnknownCategory, selection)
}
