package cwidget

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Input is a labelled entry that validates what is typed and reports only
// accepted values.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T

	OnChanged func(T)

	Validator func(string) (T, error)
	Format    func(T) string
}

// NewRangeInput accepts integers in [min, max]; an empty entry means the
// default value.
func NewRangeInput(label, placeholder string, defaultValue, min, max int, onChanged func(int)) *Input[int] {
	input := &Input[int]{
		LabelText:    label,
		Placeholder:  placeholder,
		OnChanged:    onChanged,
		DefaultValue: defaultValue,
		Validator: func(s string) (int, error) {
			return ParseRange(s, defaultValue, min, max)
		},
		Format: strconv.Itoa,
	}
	input.build()

	return input
}

// ParseRange parses s as an integer within [min, max]. Blank input yields def.
func ParseRange(s string, def, min, max int) (int, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("not a whole number: %q", s)
	}
	if v < min || v > max {
		return def, fmt.Errorf("must be between %d and %d", min, max)
	}

	return v, nil
}

func (item *Input[T]) build() {
	item.labelWidget = widget.NewLabel(item.caption(item.DefaultValue))
	item.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	item.entryWidget = widget.NewEntry()
	item.entryWidget.SetPlaceHolder(item.Placeholder)

	item.errorWidget = widget.NewLabel("")
	item.errorWidget.Hidden = true
	item.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	item.errorWidget.Importance = widget.DangerImportance

	item.entryWidget.OnChanged = func(s string) {
		res, err := item.Validator(s)
		item.SetError(err)

		if err == nil {
			if item.OnChanged != nil {
				item.OnChanged(res)
			}
			item.labelWidget.SetText(item.caption(res))
		}
	}

	item.ExtendBaseWidget(item)
}

func (item *Input[T]) caption(v T) string {
	if item.Format != nil {
		return fmt.Sprintf("%s: %s", item.LabelText, item.Format(v))
	}
	return fmt.Sprintf("%s: %v", item.LabelText, v)
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *Input[T]) SetText(text string) {
	item.entryWidget.SetText(text)
}

func (item *Input[T]) Label() string {
	return item.labelWidget.Text
}
