package roomhandler

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type HistoryQuery struct {
	Limit  int `form:"limit,default=50" binding:"gte=0,lte=500"`
	Offset int `form:"offset,default=0" binding:"gte=0"`
} // @name HistoryQuery

type NoticeBody struct {
	Message string `json:"message" binding:"required,max=4096" example:"Note saved by alice"`
} // @name NoticeRequest

type HealthResponse struct {
	Status      string `json:"status"      example:"ok"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
} // @name HealthResponse
