package domain

// Project is a customer project in the business directory
type Project struct {
	Key               string                 `json:"key" yaml:"key"`
	ProjectID         string                 `json:"project_id" yaml:"project_id"`
	CustomerName      string                 `json:"customer_name" yaml:"customer_name"`
	CustomerPrimary   string                 `json:"customer_primary" yaml:"customer_primary"`
	CustomerID        string                 `json:"customer_id" yaml:"customer_id"`
	Address           string                 `json:"address" yaml:"address"`
	ProjectType       string                 `json:"project_type" yaml:"project_type"`
	StartDate         string                 `json:"start_date" yaml:"start_date"`
	Status            string                 `json:"status" yaml:"status"`
	Specs             map[string]interface{} `json:"specs,omitempty" yaml:"specs"`
	ContactPreference string                 `json:"contact_preference,omitempty" yaml:"contact_preference"`
	SpecialNotes      string                 `json:"special_notes,omitempty" yaml:"special_notes"`
}

// Customer is a customer record
type Customer struct {
	CustomerID     string `json:"customer_id" yaml:"customer_id"`
	Name           string `json:"name" yaml:"name"`
	Partner        string `json:"partner,omitempty" yaml:"partner"`
	Phone          string `json:"phone,omitempty" yaml:"phone"`
	Email          string `json:"email,omitempty" yaml:"email"`
	PrimaryContact string `json:"primary_contact,omitempty" yaml:"primary_contact"`
	Language       string `json:"language,omitempty" yaml:"language"`
	Availability   string `json:"availability,omitempty" yaml:"availability"`
}

// ScheduleEntry is one scheduled task
type ScheduleEntry struct {
	Date     string `json:"date" yaml:"date"`
	Worker   string `json:"worker" yaml:"worker"`
	Project  string `json:"project" yaml:"project"`
	Task     string `json:"task" yaml:"task"`
	Time     string `json:"time" yaml:"time"`
	Duration string `json:"duration" yaml:"duration"`
	Status   string `json:"status" yaml:"status"`
}

// PastIssue is a resolved problem kept for reference
type PastIssue struct {
	IssueType   string  `json:"issue_type" yaml:"issue_type"`
	Description string  `json:"description" yaml:"description"`
	Solution    string  `json:"solution" yaml:"solution"`
	Project     string  `json:"project" yaml:"project"`
	Cost        float64 `json:"cost" yaml:"cost"`
	Success     bool    `json:"success" yaml:"success"`
}

// Worker is a staff member
type Worker struct {
	Name         string `json:"name" yaml:"name"`
	Role         string `json:"role" yaml:"role"`
	Specialty    string `json:"specialty" yaml:"specialty"`
	Language     string `json:"language" yaml:"language"`
	Availability string `json:"availability" yaml:"availability"`
}

// NoDataNote marks a resolved context that was queried and found nothing
const NoDataNote = "No specific project/customer data found in query"

// ResolvedContext holds directory facts found for a message's entities
type ResolvedContext struct {
	Project       *Project        `json:"project,omitempty"`
	Customer      *Customer       `json:"customer,omitempty"`
	Schedule      []ScheduleEntry `json:"schedule,omitempty"`
	SimilarIssues []PastIssue     `json:"similar_issues,omitempty"`
	Worker        *Worker         `json:"worker,omitempty"`
	Note          string          `json:"note,omitempty"`
}

// HasProject reports whether project-level context was found
func (c *ResolvedContext) HasProject() bool {
	return c != nil && c.Project != nil
}

// HasSchedule reports whether any schedule entries were found
func (c *ResolvedContext) HasSchedule() bool {
	return c != nil && len(c.Schedule) > 0
}

// IsEmpty reports whether no facts at all were found
func (c *ResolvedContext) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.Project == nil && c.Customer == nil && len(c.Schedule) == 0 &&
		len(c.SimilarIssues) == 0 && c.Worker == nil
}

// NoData reports whether the context carries the explicit no-data marker
func (c *ResolvedContext) NoData() bool {
	return c != nil && c.Note == NoDataNote
}

// Directory is a full snapshot of directory records, as loaded from a seed file
type Directory struct {
	Projects  []Project       `yaml:"projects"`
	Customers []Customer      `yaml:"customers"`
	Schedule  []ScheduleEntry `yaml:"schedule"`
	Issues    []PastIssue     `yaml:"past_issues"`
	Workers   []Worker        `yaml:"workers"`
}
