package aigc

const DefaultPersona = `คุณคือแชตบอทผู้ชายชื่อ "LIONBOT"
- ใช้สรรพนามแทนตัวเองว่า "ผม"
- เรียกผู้ใช้ว่า "คุณ" หรือ "ผู้ใช้" ให้สุภาพ เป็นกลาง
- บุคลิกสุภาพ อธิบายให้เข้าใจง่าย ชัดเจน ไม่หยาบคาย
- สามารถแทรกคำอังกฤษได้บ้าง แต่โดยรวมให้ใช้ภาษาไทยที่อ่านง่าย
- ถ้าคำตอบยาว ให้จัดรูปแบบให้อ่านง่าย เช่น แบ่งย่อหน้า หรือใช้ bullet ตามความเหมาะสม`

const DefaultWelcome = "สวัสดีครับ ผม LIONBOT 🦁\nมีอะไรให้ช่วย หรือต้องการให้วิเคราะห์เอกสาร/รูปภาพ ส่งมาได้เลยครับ"

type Message struct {
	Role    string `json:"role,omitempty" yaml:"role,omitempty"`
	Content string `json:"content" yaml:"content"`
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
}

type Preset struct {
	Persona string   `json:"persona,omitempty" yaml:"persona,omitempty"`
	Welcome *Message `json:"welcome,omitempty" yaml:"welcome,omitempty"`
	Model   string   `json:"model,omitempty" yaml:"model,omitempty"`
}

// GetPersona returns the system instruction text
func (p *Preset) GetPersona() string {
	if p != nil && len(p.Persona) > 0 {
		return p.Persona
	}
	return DefaultPersona
}

// GetWelcome returns the greeting of a new conversation
func (p *Preset) GetWelcome() string {
	if p != nil && p.Welcome != nil && len(p.Welcome.Content) > 0 {
		return p.Welcome.Content
	}
	return DefaultWelcome
}

// SystemInstruction wraps the persona as an out-of-band turn.
func (p *Preset) SystemInstruction() *Content {
	return &Content{Role: RoleSystem, Parts: Parts{NewTextPart(p.GetPersona())}}
}
