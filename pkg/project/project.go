package project

type Project struct {
	Id        int
	Name      string
	LeadId    *int
	ManagerId *int
}
