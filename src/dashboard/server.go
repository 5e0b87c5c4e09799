package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"RideGap/src/datapush"
	"RideGap/src/processor"
	"RideGap/src/storage"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Server 看板：图表、查询结果、实时日志和手动重载
type Server struct {
	holder *processor.Holder
	logger *storage.Logger
	reload func() error
}

// NewServer reload 为空时 /reload 返回 501
func NewServer(holder *processor.Holder, logger *storage.Logger, reload func() error) *Server {
	return &Server{holder: holder, logger: logger, reload: reload}
}

// Routes 注册路由并加上CORS
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.index).Methods("GET")
	router.HandleFunc("/summary", s.summary).Methods("GET")
	router.HandleFunc("/charts/{name:[a-z_]+}.png", s.chart).Methods("GET")
	router.HandleFunc("/tables/{name}", s.table).Methods("GET")
	router.HandleFunc("/logs", s.logs).Methods("GET")
	router.HandleFunc("/reload", s.reloadData).Methods("POST")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return cors(router)
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>打车供需缺口</title></head>
<body>
<h1>打车供需缺口</h1>
<p>请求总数 {{.Summary.TotalRequests}}，完成 {{.Summary.Completed}}，取消 {{.Summary.Cancelled}}，无车 {{.Summary.NoCarsAvailable}}，
缺口比例 {{printf "%.1f" .GapPercent}}%{{if .Summary.WorstSlot}}，缺口最大时段 {{.Summary.WorstSlot}}{{end}}</p>
{{range .Queries}}<section>
<h2>{{.Title}}</h2>
<img src="/charts/{{.Name}}.png" alt="{{.Title}}">
<p><a href="/tables/{{.Name}}">{{.Name}}</a></p>
</section>
{{end}}<p><a href="/logs">日志</a></p>
</body></html>
`))

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	sum := processor.Summarize(s.holder.Get())
	data := struct {
		Summary    processor.Summary
		GapPercent float64
		Queries    []processor.Query
	}{sum, sum.GapRate * 100, processor.Queries}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, processor.Summarize(s.holder.Get()))
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) {
	q, ok := processor.Lookup(mux.Vars(r)["name"])
	if !ok {
		http.Error(w, "Query not found", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	err := datapush.RenderChart(q, q.Run(s.holder.Get()), &buf)
	if errors.Is(err, datapush.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.logger.Error(err.Error())
		http.Error(w, "Render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

// tableResponse 查询结果按自然顺序输出
type tableResponse struct {
	Title string `json:"title"`
	processor.CountTable
}

func (s *Server) table(w http.ResponseWriter, r *http.Request) {
	q, ok := processor.Lookup(mux.Vars(r)["name"])
	if !ok {
		http.Error(w, "Query not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tableResponse{Title: q.Title, CountTable: q.Run(s.holder.Get()).Sorted()})
}

// logs 持续推送日志消息(每条自带换行)，客户端断开后退订
func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	// 设置响应头
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) reloadData(w http.ResponseWriter, r *http.Request) {
	if s.reload == nil {
		http.Error(w, "Reload not configured", http.StatusNotImplemented)
		return
	}
	if err := s.reload(); err != nil {
		s.logger.Error("手动重载失败: " + err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, processor.Summarize(s.holder.Get()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
