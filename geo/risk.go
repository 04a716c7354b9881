package geo

import "fmt"

type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskWarning
	RiskCritical
)

var riskNames = map[RiskLevel]string{
	RiskSafe:     "Safe",
	RiskWarning:  "Warning",
	RiskCritical: "Critical",
}

func (r RiskLevel) String() string {
	if s, ok := riskNames[r]; ok {
		return s
	}
	return fmt.Sprintf("RiskLevel(%d)", int(r))
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RiskLevel) UnmarshalText(b []byte) error {
	for k, v := range riskNames {
		if v == string(b) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", string(b))
}

// Alerting reports whether the level warrants a risk event.
func (r RiskLevel) Alerting() bool {
	return r == RiskWarning || r == RiskCritical
}
