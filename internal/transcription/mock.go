package transcription

import "strings"

// MockTranscript is stored whenever no real transcript can be obtained.
var MockTranscript = strings.Join([]string{
	"Hello everyone, I wanted to share some thoughts about effective leadership in today's rapidly changing business environment.",
	"First, I believe that empathy is the foundation of great leadership. Understanding your team members' perspectives, challenges, and motivations allows you to support them effectively and create an environment where everyone can thrive.",
	"Second, clear communication is essential. Leaders must articulate their vision and expectations in a way that resonates with their team. This includes being transparent about challenges and setbacks, not just successes.",
	"Third, adaptability is more important than ever. The business landscape is constantly evolving, and leaders must be willing to adjust their strategies and approaches accordingly.",
	"Finally, I think it's crucial to foster a culture of continuous learning and growth. Encourage your team to develop new skills, experiment with new ideas, and learn from both successes and failures.",
	"What leadership principles have you found most effective in your experience? I'd love to hear your thoughts and insights on this topic.",
}, "\n\n")
