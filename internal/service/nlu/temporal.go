package nlu

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

var (
	explicitDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	hourMinute   = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?$`)
	bareClock    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	number       = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	symbolAmount = regexp.MustCompile(`^([$€₽])(\d+(?:[.,]\d+)?)$|^(\d+(?:[.,]\d+)?)([$€₽])$`)
)

var relativeDays = map[string]int{
	"сегодня":     0,
	"завтра":      1,
	"послезавтра": 2,
}

var weekdays = map[string]time.Weekday{
	"понедельник": time.Monday,
	"вторник":     time.Tuesday,
	"среду":       time.Wednesday,
	"среда":       time.Wednesday,
	"четверг":     time.Thursday,
	"пятницу":     time.Friday,
	"пятница":     time.Friday,
	"субботу":     time.Saturday,
	"суббота":     time.Saturday,
	"воскресенье": time.Sunday,
}

var numberWords = map[string]int{
	"один": 1, "одну": 1, "одна": 1,
	"два": 2, "две": 2, "пару": 2, "пара": 2,
	"три": 3, "четыре": 4, "пять": 5, "шесть": 6,
	"семь": 7, "восемь": 8, "девять": 9, "десять": 10,
}

type span int

const (
	spanDay span = iota
	spanWeek
	spanMonth
)

var spanUnits = map[string]span{
	"день": spanDay, "дня": spanDay, "дней": spanDay,
	"неделю": spanWeek, "недели": spanWeek, "недель": spanWeek,
	"месяц": spanMonth, "месяца": spanMonth, "месяцев": spanMonth,
}

type unit struct {
	field string
	name  string
}

// unitGroup lists the spellings of one unit.
type unitGroup struct {
	field     string
	name      string
	spellings []string
}

var quantityUnits = indexUnits([]unitGroup{
	{domain.EntityQuantity, "pcs", []string{"шт", "штук", "штуки", "штука", "единиц", "единицы", "единица"}},
	{domain.EntityDuration, "min", []string{"мин", "минут", "минуты", "минуту", "минута"}},
	{domain.EntityDuration, "h", []string{"час", "часа", "часов"}},
	{domain.EntityDuration, "d", []string{"день", "дня", "дней"}},
	{domain.EntityDuration, "wk", []string{"неделя", "неделю", "недели", "недель"}},
	{domain.EntityAmount, "RUB", []string{"р", "руб", "рубль", "рубля", "рублей", "₽"}},
	{domain.EntityAmount, "USD", []string{"$", "доллар", "доллара", "долларов"}},
	{domain.EntityAmount, "EUR", []string{"евро", "€"}},
})

func indexUnits(groups []unitGroup) map[string]unit {
	out := make(map[string]unit)
	for _, g := range groups {
		for _, sp := range g.spellings {
			out[sp] = unit{field: g.field, name: g.name}
		}
	}
	return out
}

var currencySymbols = map[string]string{"$": "USD", "€": "EUR", "₽": "RUB"}

var clockPrepositions = map[string]struct{}{"в": {}, "к": {}, "at": {}}

// extractDate returns the leftmost date phrase.
func (e *Extractor) extractDate(s *scan, now time.Time) (time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for i := range s.tokens {
		tok, ok := s.token(i)
		if !ok {
			continue
		}
		if days, ok := relativeDays[tok]; ok {
			s.consume(i, i+1)
			return today.AddDate(0, 0, days), true
		}
		if wd, ok := weekdays[tok]; ok {
			from := i
			if prev, ok := s.token(i - 1); ok && (prev == "в" || prev == "во") {
				from = i - 1
			}
			s.consume(from, i+1)
			return nextWeekday(today, wd), true
		}
		if m := explicitDate.FindStringSubmatch(tok); m != nil {
			if d, ok := calendarDate(m[1], m[2], m[3], now.Location()); ok {
				s.consume(i, i+1)
				return d, true
			}
			continue
		}
		if tok == "через" {
			if d, n, ok := relativeSpan(s, i+1, today); ok {
				s.consume(i, i+1+n)
				return d, true
			}
		}
	}
	return time.Time{}, false
}

// relativeSpan parses "[N] день|неделю|месяц" starting at token i and
// returns the date plus the number of tokens read.
func relativeSpan(s *scan, i int, today time.Time) (time.Time, int, bool) {
	tok, ok := s.token(i)
	if !ok {
		return time.Time{}, 0, false
	}
	count, read := 1, 0
	if n, err := strconv.Atoi(tok); err == nil {
		count, read = n, 1
	} else if n, ok := numberWords[tok]; ok {
		count, read = n, 1
	}
	unitTok, ok := s.token(i + read)
	if !ok {
		return time.Time{}, 0, false
	}
	u, ok := spanUnits[unitTok]
	if !ok || count <= 0 {
		return time.Time{}, 0, false
	}
	switch u {
	case spanWeek:
		return today.AddDate(0, 0, 7*count), read + 1, true
	case spanMonth:
		return today.AddDate(0, count, 0), read + 1, true
	default:
		return today.AddDate(0, 0, count), read + 1, true
	}
}

func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

func calendarDate(dd, mm, yyyy string, loc *time.Location) (time.Time, bool) {
	day, _ := strconv.Atoi(dd)
	month, _ := strconv.Atoi(mm)
	year, _ := strconv.Atoi(yyyy)
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// extractClock returns the first valid "в|к|at HH[:MM]" or bare "HH:MM".
func (e *Extractor) extractClock(s *scan) (int, int, bool) {
	for i := range s.tokens {
		tok, ok := s.token(i)
		if !ok {
			continue
		}
		if _, prep := clockPrepositions[tok]; prep {
			next, ok := s.token(i + 1)
			if !ok {
				continue
			}
			m := hourMinute.FindStringSubmatch(next)
			if m == nil {
				continue
			}
			h, minute, ok := clockValue(m[1], m[2])
			if !ok {
				continue
			}
			end := i + 2
			after, _ := s.token(i + 2)
			switch after {
			case "час", "часа", "часов", "утра":
				end++
			case "вечера", "дня":
				if h >= 1 && h < 12 {
					h += 12
				}
				end++
			default:
				if _, isUnit := quantityUnits[after]; isUnit {
					continue
				}
			}
			s.consume(i, end)
			return h, minute, true
		}
		if m := bareClock.FindStringSubmatch(tok); m != nil {
			if h, minute, ok := clockValue(m[1], m[2]); ok {
				s.consume(i, i+1)
				return h, minute, true
			}
		}
	}
	return 0, 0, false
}

func clockValue(hh, mm string) (int, int, bool) {
	h, err := strconv.Atoi(hh)
	if err != nil || h > 23 {
		return 0, 0, false
	}
	minute := 0
	if mm != "" {
		minute, err = strconv.Atoi(mm)
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}
	return h, minute, true
}

// extractQuantities records the first count, duration and currency amount.
func (e *Extractor) extractQuantities(s *scan, set *domain.EntitySet) {
	for i := range s.tokens {
		tok, ok := s.token(i)
		if !ok {
			continue
		}
		if m := symbolAmount.FindStringSubmatch(tok); m != nil {
			sym, digits := m[1], m[2]
			if sym == "" {
				sym, digits = m[4], m[3]
			}
			if amount, ok := parseAmount(digits); ok && !set.Has(domain.EntityAmount) {
				set.Set(domain.EntityAmount, domain.QuantityValue(amount, currencySymbols[sym]))
				s.consume(i, i+1)
			}
			continue
		}
		if cur, ok := currencySymbols[tok]; ok {
			if next, ok := s.token(i + 1); ok && number.MatchString(next) && !set.Has(domain.EntityAmount) {
				if amount, ok := parseAmount(next); ok {
					set.Set(domain.EntityAmount, domain.QuantityValue(amount, cur))
					s.consume(i, i+2)
				}
			}
			continue
		}
		if !number.MatchString(tok) {
			continue
		}
		next, ok := s.token(i + 1)
		if !ok {
			continue
		}
		u, ok := quantityUnits[next]
		if !ok || set.Has(u.field) {
			continue
		}
		if amount, ok := parseAmount(tok); ok {
			set.Set(u.field, domain.QuantityValue(amount, u.name))
			s.consume(i, i+2)
		}
	}
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
