// Package jobapi is the HTTP surface of the dispatcher: route handlers that
// publish jobs, report their status and expose health probes.
//
//	POST /jobs          {"type":"crawl","payload":{"projectId":"p1"}}
//	                    202 {"jobId":"job_...","durable":true,"state":"queued"}
//	GET  /jobs/{id}     200 status record, 404 when unknown
//	GET  /health/live   200 while the process serves
//	GET  /health/ready  200 or 503 with per-dependency results
//
// A 202 with "durable": false means the broker could not take the job and it
// will not run until resubmitted.
package jobapi
