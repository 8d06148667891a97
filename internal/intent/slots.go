package intent

// ServiceType identifies one travel capability.
type ServiceType string

const (
	ServiceFlight      ServiceType = "flight"
	ServiceHotel       ServiceType = "hotel"
	ServiceTrain       ServiceType = "train"
	ServiceBus         ServiceType = "bus"
	ServiceAttractions ServiceType = "attractions"
	ServiceBooking     ServiceType = "booking"
)

// KnownServiceTypes lists the service types in dispatch order.
var KnownServiceTypes = []ServiceType{
	ServiceFlight,
	ServiceHotel,
	ServiceTrain,
	ServiceBus,
	ServiceAttractions,
}

// ParseServiceType normalizes a raw service tag from the extractor.
// Unknown tags (including "weather", which the extractor may emit but no
// capability serves) map to an empty service type.
func ParseServiceType(raw string) ServiceType {
	switch ServiceType(raw) {
	case ServiceFlight, ServiceHotel, ServiceTrain, ServiceBus, ServiceAttractions, ServiceBooking:
		return ServiceType(raw)
	}
	return ""
}

// Slots is the entity-slot record for the session's current intent.
// Empty string means unfilled.
type Slots struct {
	ServiceTypes []ServiceType `json:"service_types,omitempty"`
	Origin       string        `json:"origin,omitempty"`
	Destination  string        `json:"destination,omitempty"`
	Date         string        `json:"date,omitempty"`
	Travelers    string        `json:"travelers,omitempty"`
	Budget       string        `json:"budget,omitempty"`

	// Booking-specific slots.
	SelectedOption int    `json:"selected_option,omitempty"` // 1-based index into cached offers
	TravelerName   string `json:"traveler_name,omitempty"`
	Contact        string `json:"contact,omitempty"`
	Email          string `json:"email,omitempty"`
}

// Merge applies in on top of s. A filled slot is only replaced by a new
// non-empty value; empty extractions never clear prior answers.
func (s Slots) Merge(in Slots) Slots {
	out := s
	if len(in.ServiceTypes) > 0 {
		out.ServiceTypes = in.ServiceTypes
	}
	if in.Origin != "" {
		out.Origin = in.Origin
	}
	if in.Destination != "" {
		out.Destination = in.Destination
	}
	if in.Date != "" {
		out.Date = in.Date
	}
	if in.Travelers != "" {
		out.Travelers = in.Travelers
	}
	if in.Budget != "" {
		out.Budget = in.Budget
	}
	if in.SelectedOption > 0 {
		out.SelectedOption = in.SelectedOption
	}
	if in.TravelerName != "" {
		out.TravelerName = in.TravelerName
	}
	if in.Contact != "" {
		out.Contact = in.Contact
	}
	if in.Email != "" {
		out.Email = in.Email
	}
	return out
}

// HasService reports whether svc is among the record's service types.
func (s Slots) HasService(svc ServiceType) bool {
	for _, t := range s.ServiceTypes {
		if t == svc {
			return true
		}
	}
	return false
}

// checklist returns the required slot names for svc, in the order the
// router asks for them.
func checklist(svc ServiceType) []string {
	switch svc {
	case ServiceFlight, ServiceTrain, ServiceBus:
		return []string{"origin", "destination", "date", "travelers"}
	case ServiceHotel:
		return []string{"destination", "date", "travelers"}
	case ServiceAttractions:
		return []string{"destination"}
	}
	return nil
}

func (s Slots) value(name string) string {
	switch name {
	case "origin":
		return s.Origin
	case "destination":
		return s.Destination
	case "date":
		return s.Date
	case "travelers":
		return s.Travelers
	}
	return ""
}

// Missing returns the unfilled required slots for svc, checklist order.
func (s Slots) Missing(svc ServiceType) []string {
	var missing []string
	for _, name := range checklist(svc) {
		if s.value(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// MissingAny returns the unfilled required slots across every requested
// service type, deduplicated, preserving checklist order per service.
func (s Slots) MissingAny() []string {
	seen := make(map[string]bool)
	var missing []string
	for _, svc := range s.ServiceTypes {
		for _, name := range s.Missing(svc) {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
		}
	}
	return missing
}

// RetainFor keeps the slots that still make sense when the session's intent
// switches to a new set of service types. Shared slots (destination, date,
// travelers, budget) survive; origin is dropped unless a point-to-point
// service remains; booking slots always reset on a new search intent.
func (s Slots) RetainFor(next []ServiceType) Slots {
	out := Slots{
		ServiceTypes: next,
		Destination:  s.Destination,
		Date:         s.Date,
		Travelers:    s.Travelers,
		Budget:       s.Budget,
	}
	for _, svc := range next {
		if svc == ServiceFlight || svc == ServiceTrain || svc == ServiceBus {
			out.Origin = s.Origin
			break
		}
	}
	return out
}
